// Package middleware provides HTTP middlewares for client-certificate
// authentication and request logging.
package middleware

import (
	"context"
	"net/http"
)

type ctxKey string

const (
	ownerKey     ctxKey = "owner"
	ownerSlotKey ctxKey = "owner-slot"
)

// ownerSlot lets a middleware that runs before CertAuth see the owner once
// the handler chain has returned.
type ownerSlot struct {
	owner string
}

// RegisterPath is served without a client certificate so that new owners
// can obtain one.
const RegisterPath = "/api/register"

// CertAuth enforces mutual TLS authentication. The Common Name of the first
// peer certificate names the keychain owner and is stored in the request
// context. Requests to RegisterPath pass through untouched.
func CertAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == RegisterPath {
			next.ServeHTTP(w, r)
			return
		}
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, "no client certificate provided", http.StatusUnauthorized)
			return
		}
		owner := r.TLS.PeerCertificates[0].Subject.CommonName
		if owner == "" {
			http.Error(w, "client certificate has no common name", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

// WithOwner returns a copy of ctx carrying the authenticated owner. The
// owner is also recorded in the slot WithRequestLogging put into ctx, if any.
func WithOwner(ctx context.Context, owner string) context.Context {
	if slot, ok := ctx.Value(ownerSlotKey).(*ownerSlot); ok {
		slot.owner = owner
	}
	return context.WithValue(ctx, ownerKey, owner)
}

// OwnerFromContext returns the owner stored by CertAuth, or "" when there is none.
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey).(string)
	return owner
}
