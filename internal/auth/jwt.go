// Package auth resolves the requestor identity on load endpoints. The
// requestor is the GitHub login whose token budget background work should
// run under; it travels from here through the scheduler into the upstream
// client's TokenSource.
package auth

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const ctxRequestor ctxKey = "requestor"

// Config holds JWT authentication configuration
type Config struct {
	HS256Secret string // HMAC secret for HS256 tokens
	DevMode     bool   // Allow X-Debug-Sub header (DANGEROUS: only for local dev)
}

// Middleware authenticates load-endpoint requests and stores the
// requestor login in the request context. Two modes:
// 1. Production: Bearer token with JWT validation; sub claim = GitHub login
// 2. Development: X-Debug-Sub header (ONLY when DevMode=true)
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if cfg.DevMode {
		log.Warn().Msg("SECURITY WARNING: DevMode enabled - X-Debug-Sub header will bypass JWT authentication")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ""
			if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
				tok = h[7:]
			}

			sub := ""

			// Development mode: accept X-Debug-Sub ONLY if DevMode is
			// enabled and no token present
			if cfg.DevMode && tok == "" {
				sub = r.Header.Get("X-Debug-Sub")
				if sub != "" {
					log.Debug().Str("sub", sub).Msg("using X-Debug-Sub header (dev mode)")
				}
			}

			if tok != "" {
				claims := jwt.MapClaims{}
				t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return []byte(cfg.HS256Secret), nil
				})
				if err != nil || !t.Valid {
					log.Warn().Err(err).Msg("jwt validation failed")
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				if s, ok := claims["sub"].(string); ok {
					sub = s
				}
			}

			if sub == "" {
				log.Warn().Msg("missing subject (no JWT sub or X-Debug-Sub header)")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxRequestor, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Requestor extracts the authenticated login from request context.
// Returns empty string if not authenticated (should never happen after
// middleware).
func Requestor(ctx context.Context) string {
	if v := ctx.Value(ctxRequestor); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
