// Package httpapi maps the HTTP surface onto the auth, borrow, store and
// cache services. Handlers stay thin: decode, delegate, encode.
package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"library-service/auth"
	"library-service/borrow"
	"library-service/cache"
	"library-service/model"
	"library-service/store"
)

// Server holds the injected services and the route table.
type Server struct {
	auth    *auth.Service
	borrows *borrow.Service
	store   *store.Store
	cache   *cache.Cache
	log     *zap.Logger
	mux     *http.ServeMux
}

// New wires the routes. All dependencies are constructed by the caller and
// injected; the server owns none of them.
func New(authSvc *auth.Service, borrowSvc *borrow.Service, st *store.Store, c *cache.Cache, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		auth:    authSvc,
		borrows: borrowSvc,
		store:   st,
		cache:   c,
		log:     log,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /users/registration", s.guard(model.RoleLibrarian, s.handleRegister))
	s.mux.HandleFunc("POST /users/login", s.handleLogin)
	s.mux.HandleFunc("POST /users/logout", s.handleLogout)
	s.mux.HandleFunc("GET /users/my-borrows", s.guard(model.RoleUser, s.handleMyBorrows))

	s.mux.HandleFunc("POST /borrows/{$}", s.guard(model.RoleUser, s.handleRequestBorrow))
	s.mux.HandleFunc("GET /borrows/pending", s.guard(model.RoleLibrarian, s.handlePendingBorrows))
	s.mux.HandleFunc("PUT /borrows/{id}/approve", s.guard(model.RoleLibrarian, s.handleApproveBorrow))
	s.mux.HandleFunc("PUT /borrows/{id}/reject", s.guard(model.RoleLibrarian, s.handleRejectBorrow))
	s.mux.HandleFunc("PUT /borrows/{id}/return", s.guard(model.RoleLibrarian, s.handleReturnBorrow))

	s.mux.HandleFunc("GET /books/{$}", s.handleFindBooks)
	s.mux.HandleFunc("POST /books/{$}", s.guard(model.RoleLibrarian, s.handleAddBook))
}

// Handler returns the full middleware-wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return requestLogger(s.log, s.mux)
}
