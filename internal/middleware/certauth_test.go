package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"net/http"
	"net/http/httptest"
	"testing"
)

// dummyHandler records whether it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

func peer(cn string) *tls.ConnectionState {
	cert := &x509.Certificate{Subject: pkix.Name{CommonName: cn}}
	return &tls.ConnectionState{PeerCertificates: []*x509.Certificate{cert}}
}

func TestCertAuth(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		state     *tls.ConnectionState
		wantCode  int
		wantNext  bool
		wantOwner string
	}{
		{name: "register bypass", path: RegisterPath, wantCode: http.StatusOK, wantNext: true},
		{name: "no TLS", path: "/api/items", wantCode: http.StatusUnauthorized},
		{name: "no peer certificates", path: "/api/items", state: &tls.ConnectionState{}, wantCode: http.StatusUnauthorized},
		{name: "empty common name", path: "/api/items", state: peer(""), wantCode: http.StatusUnauthorized},
		{name: "valid certificate", path: "/api/items", state: peer("alice"), wantCode: http.StatusOK, wantNext: true, wantOwner: "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.TLS = tt.state

			CertAuth(dummy).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if dummy.called != tt.wantNext {
				t.Fatalf("next called = %v; want %v", dummy.called, tt.wantNext)
			}
			if tt.wantNext {
				if got := OwnerFromContext(dummy.ctx); got != tt.wantOwner {
					t.Errorf("expected owner %q, got %q", tt.wantOwner, got)
				}
			}
		})
	}
}

func TestOwnerFromContext(t *testing.T) {
	if got := OwnerFromContext(context.Background()); got != "" {
		t.Errorf("expected empty owner, got %q", got)
	}
	if got := OwnerFromContext(WithOwner(context.Background(), "bob")); got != "bob" {
		t.Errorf("expected 'bob', got %q", got)
	}
}
