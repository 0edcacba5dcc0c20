package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/hubmirror/internal/auth"
)

// Routes creates the HTTP router. The webhook intake is unauthenticated
// (upstream push deliveries carry no bearer token); every load endpoint
// requires a requestor identity and echoes the upstream rate-limit window.
func (s *Server) Routes(jwtCfg auth.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})
	r.Method("GET", "/metrics", promhttp.Handler())

	// Webhook intake, current path plus the legacy per-event ones.
	r.Post("/replication", s.Webhook)
	r.Post("/replication/{event}", s.Webhook)

	// Load endpoints
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwtCfg))
		r.Use(s.echoRateLimit)

		r.Route("/repos/{owner}/{repo}", func(r chi.Router) {
			r.Post("/", s.LoadRepo)
			r.Post("/issues", s.LoadIssues)
			r.Post("/issues/{number}", s.LoadIssue)
			r.Post("/labels", s.LoadLabels)
			r.Post("/labels/{name}", s.LoadLabel)
			r.Post("/milestones", s.LoadMilestones)
			r.Post("/milestones/{number}", s.LoadMilestone)
			r.Post("/hooks", s.LoadHooks)
			r.Post("/hooks/{hookID}", s.LoadHook)
			r.Post("/pulls", s.LoadPulls)
			r.Post("/pulls/{number}", s.LoadPull)
			r.Post("/pulls/{number}/files", s.LoadPullFiles)
		})
		r.Post("/user/repos", s.LoadOwnRepos)
		r.Post("/user/{username}/repos", s.LoadUserRepos)

		r.Get("/tasks/status/{id}", s.TaskStatus)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
