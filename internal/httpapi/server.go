// Package httpapi is the HTTP boundary of the mirror: the webhook intake
// that receives upstream push notifications, the load endpoints that start
// REST pulls, and the task-status endpoint for async work.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/hubmirror/internal/github"
	"github.com/erauner12/hubmirror/internal/jobs"
	"github.com/erauner12/hubmirror/internal/scan"
	"github.com/erauner12/hubmirror/internal/store"
)

// Server holds dependencies for HTTP handlers. Load endpoints run their
// jobs on the queue by default; inline=true routes the same job through an
// eager scheduler so errors come back on the request.
type Server struct {
	store  store.Store
	gh     *github.Client
	queue  jobs.Scheduler
	async  *scan.Syncer
	inline *scan.Syncer
	log    zerolog.Logger

	// now is the webhook intake's fetch clock, injectable for tests.
	now func() time.Time
}

func NewServer(st store.Store, gh *github.Client, queue jobs.Scheduler, log zerolog.Logger) *Server {
	eager := jobs.NewInline(log)
	return &Server{
		store:  st,
		gh:     gh,
		queue:  queue,
		async:  scan.New(st, gh, queue, log),
		inline: scan.New(st, gh, eager, log),
		log:    log,
		now:    time.Now,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, messageResponse{Message: msg})
}
