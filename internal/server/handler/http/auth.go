// Package http provides the HTTP handlers and router of the keychain API:
// owner registration, certificate login and item storage.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/GophKeychain/internal/models"
	"github.com/atinyakov/GophKeychain/internal/service"
	"go.uber.org/zap"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// UserExists checks whether a user with the given login exists.
	// Returns true if the user exists, false otherwise.
	UserExists(context.Context, string) (bool, error)
	// RegisterUser registers a new user with the given login.
	RegisterUser(context.Context, string) error
}

// CertIssuer issues client certificates whose Common Name is the owner.
type CertIssuer interface {
	IssueClient(owner string) (certPEM, keyPEM []byte, err error)
}

// AuthHandler handles HTTP requests for user registration and login.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	// Issuer signs the certificates handed out on registration.
	Issuer CertIssuer
	Log    *zap.Logger
}

// RegisterRequest represents the JSON payload for user registration.
type RegisterRequest struct {
	// Login is the username to register.
	Login string `json:"login"`
}

// Register handles user registration requests.
// It expects a JSON body with a non-empty "login" field.
// A client certificate is issued for the login, but it is only returned
// once the user row has been inserted; a login registered first by someone
// else, even concurrently, gets 409 and no certificate.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Login == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	exists, err := h.AuthService.UserExists(r.Context(), req.Login)
	if err != nil {
		h.logger().Error("user lookup failed", zap.String("login", req.Login), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if exists {
		http.Error(w, "user already exists", http.StatusConflict)
		return
	}

	certPEM, keyPEM, err := h.Issuer.IssueClient(req.Login)
	if err != nil {
		h.logger().Error("issue client certificate failed", zap.String("login", req.Login), zap.Error(err))
		http.Error(w, "failed to generate certificate", http.StatusInternalServerError)
		return
	}

	if err := h.AuthService.RegisterUser(r.Context(), req.Login); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidLogin):
			http.Error(w, "invalid login", http.StatusBadRequest)
		case errors.Is(err, models.ErrUserExists):
			http.Error(w, "user already exists", http.StatusConflict)
		default:
			h.logger().Error("register user failed", zap.String("login", req.Login), zap.Error(err))
			http.Error(w, "failed to save user", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"cert": string(certPEM),
		"key":  string(keyPEM),
	})
}

// Login handles certificate-based login requests.
// The CommonName from the client certificate is used as the login.
// If the user exists, it returns a JSON status "ok" and the username.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		http.Error(w, "client certificate required", http.StatusUnauthorized)
		return
	}

	login := r.TLS.PeerCertificates[0].Subject.CommonName

	exists, err := h.AuthService.UserExists(r.Context(), login)
	if err != nil {
		h.logger().Error("user lookup failed", zap.String("login", login), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !exists {
		http.Error(w, "user not found", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"user":   login,
	})
}

func (h *AuthHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
