package http

import (
	"net/http"

	"github.com/atinyakov/GophKeychain/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP handler that serves the keychain API.
//
// Routes:
//
//	POST   /api/register        authHandler.Register
//	POST   /api/login           authHandler.Login
//	POST   /api/items           keychainHandler.Add
//	PUT    /api/items           keychainHandler.Update
//	GET    /api/items?kind=     keychainHandler.List
//	DELETE /api/items?kind=     keychainHandler.Clear
//	GET    /api/items/{id}      keychainHandler.Get
//	DELETE /api/items/{id}      keychainHandler.Delete
//
// Middleware chain (applied in order):
//  1. AllowContentType("application/json") rejects non-JSON bodies
//  2. WithRequestLogging(logger) logs every request
//  3. CertAuth puts the client certificate owner in the context
func NewRouter(
	authHandler *AuthHandler,
	keychainHandler *KeychainHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.CertAuth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		r.Route("/items", func(r chi.Router) {
			r.Post("/", keychainHandler.Add)
			r.Put("/", keychainHandler.Update)
			r.Get("/", keychainHandler.List)
			r.Delete("/", keychainHandler.Clear)
			r.Get("/{id}", keychainHandler.Get)
			r.Delete("/{id}", keychainHandler.Delete)
		})
	})

	return r
}
