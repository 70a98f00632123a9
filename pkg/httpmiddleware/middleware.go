// Package httpmiddleware provides HTTP middleware shared by the API
// server: panic recovery, request IDs, request logging, rate limiting,
// CORS, and API key authentication.
package httpmiddleware

import "net/http"

// Middleware wraps an http.Handler with additional behaviour.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware becomes the
// outermost one, so Wrap(h, a, b) serves requests through a, then b,
// then h.
func Wrap(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
