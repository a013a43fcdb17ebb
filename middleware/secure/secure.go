// Package secure adds the default security headers to every response.
package secure

import "github.com/goliatone/go-router"

// DefaultHeaders are applied by New when no headers are given
var DefaultHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "1; mode=block",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
}

// New returns a middleware that sets headers before calling the next handler
func New(headers ...map[string]string) router.MiddlewareFunc {
	h := DefaultHeaders
	if len(headers) > 0 && headers[0] != nil {
		h = headers[0]
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			for k, v := range h {
				ctx.SetHeader(k, v)
			}
			if hf != nil {
				return hf(ctx)
			}
			return ctx.Next()
		}
	}
}
