package http

import "net/http"

// Handler is the stdlib handler func shape every route in the tree uses
type Handler = func(http.ResponseWriter, *http.Request)

// Router is the mounting surface handed to modules. The chi adapters in this
// package satisfy it, so module code never imports chi directly. The verb set
// is deliberately the one the API actually routes; grow it when a route needs
// another method
type Router interface {
	Get(path string, h Handler)
	Post(path string, h Handler)

	Handle(path string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	Group(fn func(Router))
	Route(pattern string, fn func(Router))

	Mux() http.Handler
}
