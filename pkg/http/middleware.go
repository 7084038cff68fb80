package http

import "net/http"

// Middleware wraps a handler with request handling that runs around it.
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares; Chain(a, b)(h) runs a, then b, then h.
func Chain(m ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(m) - 1; i >= 0; i-- {
			next = m[i](next)
		}
		return next
	}
}
