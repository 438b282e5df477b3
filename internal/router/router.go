// Package router is a thin method-aware layer over http.ServeMux with
// global, group and per-route middleware.
package router

import (
	"net/http"
	"slices"
	"strings"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Router registers routes on a shared ServeMux. Groups share the mux and
// the fallback handlers but carry their own middleware chain.
type Router struct {
	routes *routeTable
	chain  []Middleware
}

type routeTable struct {
	mux              *http.ServeMux
	methods          []string
	notFound         http.Handler
	methodNotAllowed http.Handler
}

// New creates a Router whose middleware runs in the order given, outermost
// first.
func New(middleware ...Middleware) *Router {
	return &Router{
		routes: &routeTable{mux: http.NewServeMux()},
		chain:  middleware,
	}
}

// ServeHTTP dispatches to the matching route. Requests whose path exists
// under other methods get 405 with an Allow header, the rest get the
// NotFound handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if _, pattern := r.routes.mux.Handler(req); pattern != "" {
		r.routes.mux.ServeHTTP(w, req)
		return
	}

	if allow := r.allowedMethods(req); len(allow) > 0 {
		w.Header().Set("Allow", strings.Join(allow, ", "))
		r.fallback(r.routes.methodNotAllowed, http.StatusMethodNotAllowed).ServeHTTP(w, req)
		return
	}
	r.fallback(r.routes.notFound, http.StatusNotFound).ServeHTTP(w, req)
}

func (r *Router) allowedMethods(req *http.Request) []string {
	alt := *req
	var allow []string
	for _, m := range r.routes.methods {
		if m == req.Method {
			continue
		}
		alt.Method = m
		if _, pattern := r.routes.mux.Handler(&alt); pattern != "" {
			allow = append(allow, m)
		}
	}
	return allow
}

func (r *Router) fallback(h http.Handler, status int) http.Handler {
	if h != nil {
		return h
	}
	return r.wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, http.StatusText(status), status)
	}), nil)
}

func (r *Router) Get(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodGet, pattern, handler, middleware...)
}

func (r *Router) Post(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPost, pattern, handler, middleware...)
}

func (r *Router) Put(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodPut, pattern, handler, middleware...)
}

func (r *Router) Delete(pattern string, handler http.HandlerFunc, middleware ...Middleware) {
	r.Handle(http.MethodDelete, pattern, handler, middleware...)
}

// Handle registers handler for method and pattern behind the router chain
// followed by the route's own middleware.
func (r *Router) Handle(method, pattern string, handler http.Handler, middleware ...Middleware) {
	r.routes.mux.Handle(method+" "+pattern, r.wrap(handler, middleware))
	if !slices.Contains(r.routes.methods, method) {
		r.routes.methods = append(r.routes.methods, method)
		slices.Sort(r.routes.methods)
	}
}

// Group returns a Router that adds middleware after this router's chain.
func (r *Router) Group(middleware ...Middleware) *Router {
	return &Router{
		routes: r.routes,
		chain:  append(slices.Clone(r.chain), middleware...),
	}
}

// NotFound sets the handler for unmatched paths. The router chain applies.
func (r *Router) NotFound(handler http.Handler) {
	r.routes.notFound = r.wrap(handler, nil)
}

// MethodNotAllowed sets the handler for known paths hit with the wrong
// method. The Allow header is already set when it runs.
func (r *Router) MethodNotAllowed(handler http.Handler) {
	r.routes.methodNotAllowed = r.wrap(handler, nil)
}

func (r *Router) wrap(handler http.Handler, middleware []Middleware) http.Handler {
	chain := append(slices.Clone(r.chain), middleware...)
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}
	return handler
}
