package web

import (
	"net/http"
	"strings"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// ServeMux is a wrapper around http.ServeMux that adds support for
// route grouping and applying middlewares with syntax sugar.
//
// Usage:
//
//	mux := web.NewServeMux()
//	mux.Use(web.RequestLogger(logger))
//	mux.Use(mgr.Handler)
//
//	app := mux.Group("/app", mgr.Require(isAuthenticated, "/login"))
//	app.HandleFunc("/", homeHandler)
type ServeMux struct {
	*http.ServeMux
	middlewares []Middleware
}

// NewServeMux creates a new ServeMux instance.
func NewServeMux() *ServeMux {
	return &ServeMux{
		ServeMux: http.NewServeMux(),
	}
}

// Group creates a sub-router mounted at prefix. Requests reaching it pass
// through the parent's middlewares first, then through middlewares.
func (mux *ServeMux) Group(prefix string, middlewares ...Middleware) *ServeMux {
	prefix = strings.TrimSuffix(prefix, "/")
	subMux := NewServeMux()

	mux.Handle(prefix+"/", http.StripPrefix(prefix, chain(subMux, middlewares)))
	return subMux
}

// Use adds a middleware applied to all routes registered on this mux.
func (mux *ServeMux) Use(mw Middleware) {
	mux.middlewares = append(mux.middlewares, mw)
}

// ServeHTTP implements http.Handler and applies the middlewares before
// dispatching to the underlying http.ServeMux.
func (mux *ServeMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chain(mux.ServeMux, mux.middlewares).ServeHTTP(w, r)
}

// chain wraps h so the first middleware runs outermost.
func chain(h http.Handler, middlewares []Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
