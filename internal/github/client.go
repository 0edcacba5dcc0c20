// Package github is the upstream REST client. It owns authentication,
// pagination primitives and rate-limit accounting; everything else in the
// mirror consumes its payload.Object output.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/hubmirror/internal/payload"
)

// DefaultPerPage is the upstream's maximum page size; scans always ask for
// it so page counts stay small.
const DefaultPerPage = 100

type Client struct {
	base   *url.URL
	httpc  *http.Client
	tokens TokenSource

	mu   sync.Mutex
	last *RateLimit
}

// New builds a client for the given API base url.
func New(baseURL string, tokens TokenSource) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	c := &Client{base: base, tokens: tokens}
	c.httpc = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &rateLimitTransport{
			next:    http.DefaultTransport,
			observe: c.observe,
		},
		// HEAD is only used to read pagination headers; following a
		// redirect would burn a request and lose the Link header.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > 0 && via[0].Method == http.MethodHead {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return c, nil
}

func (c *Client) observe(rl RateLimit) {
	c.mu.Lock()
	c.last = &rl
	c.mu.Unlock()
}

// LastRateLimit returns the most recent observation, for echoing to API
// callers.
func (c *Client) LastRateLimit() (RateLimit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return RateLimit{}, false
	}
	return *c.last, true
}

// Item GETs a single object.
func (c *Client) Item(ctx context.Context, requestor, path string) (payload.Object, time.Time, error) {
	resp, err := c.do(ctx, http.MethodGet, requestor, path, nil)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer resp.Body.Close()

	var obj payload.Object
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return obj, time.Now().UTC(), nil
}

// Page GETs one page of a listing.
func (c *Client) Page(ctx context.Context, requestor, path string, query url.Values, page, perPage int) ([]payload.Object, time.Time, error) {
	resp, err := c.do(ctx, http.MethodGet, requestor, path, pageQuery(query, page, perPage))
	if err != nil {
		return nil, time.Time{}, err
	}
	defer resp.Body.Close()

	var items []payload.Object
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode %s page %d: %w", path, page, err)
	}
	return items, time.Now().UTC(), nil
}

// LastPage HEADs a listing and derives its page count from the Link
// header's rel="last" target. Absent or malformed pagination means one
// page.
func (c *Client) LastPage(ctx context.Context, requestor, path string, query url.Values, perPage int) (int, error) {
	resp, err := c.do(ctx, http.MethodHead, requestor, path, pageQuery(query, 1, perPage))
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	if n := lastPageFromLink(resp.Header.Get("Link")); n > 0 {
		return n, nil
	}
	return 1, nil
}

func pageQuery(query url.Values, page, perPage int) url.Values {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	return q
}

func (c *Client) do(ctx context.Context, method, requestor, path string, query url.Values) (*http.Response, error) {
	u := c.urlFor(path, query)
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "hubmirror")

	token, err := c.tokens.Token(requestor)
	if err != nil {
		return nil, fmt.Errorf("token for %q: %w", requestor, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	log.Debug().Str("method", method).Str("url", u).Msg("upstream request")

	resp, err := c.httpc.Do(req)
	if err != nil {
		// The transport's rate-limit failure arrives wrapped in a
		// url.Error; surface it bare so callers can match on it.
		var rle *RateLimitedError
		if errors.As(err, &rle) {
			return nil, rle
		}
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, &NotFoundError{URL: u}
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &UpstreamError{Status: resp.StatusCode, URL: u, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

func (c *Client) urlFor(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// lastPageFromLink parses an RFC 5988 Link header and returns the page
// number of the rel="last" target, or 0 when there is none.
func lastPageFromLink(link string) int {
	for _, part := range strings.Split(link, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		last := false
		for _, param := range segs[1:] {
			switch strings.TrimSpace(param) {
			case `rel="last"`, `rel=last`:
				last = true
			}
		}
		if !last {
			continue
		}
		target := strings.Trim(strings.TrimSpace(segs[0]), "<>")
		u, err := url.Parse(target)
		if err != nil {
			continue
		}
		n, err := strconv.Atoi(u.Query().Get("page"))
		if err != nil || n < 1 {
			continue
		}
		return n
	}
	return 0
}
