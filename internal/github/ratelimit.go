package github

import (
	"net/http"
	"strconv"
	"time"

	"github.com/erauner12/hubmirror/internal/metrics"
)

// RateLimit is one observation of the upstream's per-token request budget.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// parseRateLimit reads the X-RateLimit-* trio. The Remaining header is the
// signal; responses without it (non-API hosts, local stubs) carry no
// observation.
func parseRateLimit(h http.Header) (RateLimit, bool) {
	remaining := h.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return RateLimit{}, false
	}
	var rl RateLimit
	var err error
	if rl.Remaining, err = strconv.Atoi(remaining); err != nil {
		return RateLimit{}, false
	}
	rl.Limit, _ = strconv.Atoi(h.Get("X-RateLimit-Limit"))
	if s := h.Get("X-RateLimit-Reset"); s != "" {
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
			rl.Reset = time.Unix(sec, 0).UTC()
		}
	}
	return rl, true
}

// rateLimitTransport watches every response for the rate-limit headers,
// reports each observation, and converts an exhausted budget into a
// RateLimitedError regardless of the response status. The upstream sets
// Remaining on successes too, so exhaustion can surface on a 200 whose
// successor would have been a 403.
type rateLimitTransport struct {
	next    http.RoundTripper
	observe func(RateLimit)
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	rl, ok := parseRateLimit(resp.Header)
	if !ok {
		return resp, nil
	}
	t.observe(rl)
	if rl.Remaining == 0 {
		resp.Body.Close()
		metrics.RateLimitHits.Inc()
		return nil, &RateLimitedError{RateLimit: rl, URL: req.URL.String()}
	}
	return resp, nil
}
