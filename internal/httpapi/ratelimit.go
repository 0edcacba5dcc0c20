package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/erauner12/hubmirror/internal/github"
)

// rateLimitHeaders writes the X-RateLimit trio from one observation.
func rateLimitHeaders(h http.Header, rl github.RateLimit) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(rl.Reset.Unix(), 10))
}

// echoWriter delays header emission until the handler commits a status, so
// an inline upstream call made during the handler still contributes its
// fresher observation.
type echoWriter struct {
	http.ResponseWriter
	gh          *github.Client
	wroteHeader bool
}

func (w *echoWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if rl, ok := w.gh.LastRateLimit(); ok {
			rateLimitHeaders(w.Header(), rl)
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *echoWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// echoRateLimit surfaces the most recent upstream rate-limit window on
// every load response, so callers can pace themselves without asking
// upstream directly.
func (s *Server) echoRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&echoWriter{ResponseWriter: w, gh: s.gh}, r)
	})
}

// writeRateLimited translates an exhausted upstream budget into a 503 with
// the reset instant in both machine and human form.
func writeRateLimited(w http.ResponseWriter, rle *github.RateLimitedError) {
	wait := time.Until(rle.Reset)
	seconds := int(wait.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	rateLimitHeaders(w.Header(), rle.RateLimit)
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeMessage(w, http.StatusServiceUnavailable,
		fmt.Sprintf("Upstream rate limit exhausted. Try again in %d seconds.", seconds))
}
