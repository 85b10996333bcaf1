package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atinyakov/GophKeychain/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeKeychainService implements KeychainService for testing.
type fakeKeychainService struct {
	AddFunc        func(ctx context.Context, owner string, item models.Item) (models.Record, error)
	UpdateFunc     func(ctx context.Context, owner string, item models.Item) (models.Record, error)
	GetByIDFunc    func(ctx context.Context, owner, id string) (*models.Record, error)
	DeleteByIDFunc func(ctx context.Context, owner, id string) error
	RecordsFunc    func(ctx context.Context, owner string, kinds ...models.Kind) ([]models.Record, error)
	ClearFunc      func(ctx context.Context, owner string, kinds ...models.Kind) (int64, error)
}

func (f *fakeKeychainService) Add(ctx context.Context, owner string, item models.Item) (models.Record, error) {
	return f.AddFunc(ctx, owner, item)
}
func (f *fakeKeychainService) Update(ctx context.Context, owner string, item models.Item) (models.Record, error) {
	return f.UpdateFunc(ctx, owner, item)
}
func (f *fakeKeychainService) GetByID(ctx context.Context, owner, id string) (*models.Record, error) {
	return f.GetByIDFunc(ctx, owner, id)
}
func (f *fakeKeychainService) DeleteByID(ctx context.Context, owner, id string) error {
	return f.DeleteByIDFunc(ctx, owner, id)
}
func (f *fakeKeychainService) Records(ctx context.Context, owner string, kinds ...models.Kind) ([]models.Record, error) {
	return f.RecordsFunc(ctx, owner, kinds...)
}
func (f *fakeKeychainService) Clear(ctx context.Context, owner string, kinds ...models.Kind) (int64, error) {
	return f.ClearFunc(ctx, owner, kinds...)
}

func pinRecord(t *testing.T) models.Record {
	t.Helper()
	item, err := models.NewPasswordItem("1234", "bank-pin", models.WithAccessLevel(models.AccessibleAfterFirstUnlock))
	require.NoError(t, err)
	return models.Project(item)
}

// serve routes req through the full router as the given owner ("" for no
// client certificate).
func serve(t *testing.T, svc *fakeKeychainService, owner, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{{Subject: pkix.Name{CommonName: owner}}}}
	}
	router := NewRouter(&AuthHandler{AuthService: &fakeAuthService{}, Issuer: &fakeIssuer{}}, &KeychainHandler{KeychainService: svc}, zap.NewNop())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestKeychainHandler_Add(t *testing.T) {
	want := pinRecord(t)
	svc := &fakeKeychainService{
		AddFunc: func(ctx context.Context, owner string, item models.Item) (models.Record, error) {
			assert.Equal(t, "alice", owner)
			pw, ok := item.(*models.PasswordItem)
			require.True(t, ok, "decoded %T", item)
			assert.Equal(t, "bank-pin", pw.Identifier())
			rec := models.Project(item)
			rec.Version = 99
			return rec, nil
		},
	}

	res := serve(t, svc, "alice", http.MethodPost, "/api/items", want)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	var got ItemResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, want.ID(), got.ID)
	assert.Equal(t, int64(99), got.Version)
	assert.Equal(t, models.AccessibleAfterFirstUnlock, got.AccessLevel)
	assert.Equal(t, "1234", got.Secret())
}

func TestKeychainHandler_AddErrors(t *testing.T) {
	tests := []struct {
		name     string
		owner    string
		body     any
		addErr   error
		wantCode int
	}{
		{name: "no certificate", owner: "", body: pinRecord(t), wantCode: http.StatusUnauthorized},
		{name: "not a record", owner: "alice", body: "nope", wantCode: http.StatusBadRequest},
		{name: "unknown class", owner: "alice", body: models.Record{Key: map[string]string{models.ClassKey: "secureNote"}}, wantCode: http.StatusBadRequest},
		{name: "duplicate", owner: "alice", body: pinRecord(t), addErr: fmt.Errorf("add item: %w", models.ErrDuplicateItem), wantCode: http.StatusConflict},
		{name: "storage failure", owner: "alice", body: pinRecord(t), addErr: errors.New("db down"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeKeychainService{
				AddFunc: func(context.Context, string, models.Item) (models.Record, error) {
					return models.Record{}, tt.addErr
				},
			}
			res := serve(t, svc, tt.owner, http.MethodPost, "/api/items", tt.body)
			assert.Equal(t, tt.wantCode, res.Code, res.Body.String())
		})
	}
}

func TestKeychainHandler_AddRejectsNonJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/items", bytes.NewBufferString("x"))
	req.Header.Set("Content-Type", "text/plain")
	router := NewRouter(&AuthHandler{}, &KeychainHandler{KeychainService: &fakeKeychainService{}}, zap.NewNop())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestKeychainHandler_Update(t *testing.T) {
	svc := &fakeKeychainService{
		UpdateFunc: func(ctx context.Context, owner string, item models.Item) (models.Record, error) {
			return models.Record{}, fmt.Errorf("update item: %w", models.ErrItemNotFound)
		},
	}
	res := serve(t, svc, "alice", http.MethodPut, "/api/items", pinRecord(t))
	assert.Equal(t, http.StatusNotFound, res.Code)

	svc.UpdateFunc = func(ctx context.Context, owner string, item models.Item) (models.Record, error) {
		return models.Project(item), nil
	}
	res = serve(t, svc, "alice", http.MethodPut, "/api/items", pinRecord(t))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestKeychainHandler_List(t *testing.T) {
	rec := pinRecord(t)
	svc := &fakeKeychainService{
		RecordsFunc: func(ctx context.Context, owner string, kinds ...models.Kind) ([]models.Record, error) {
			assert.Equal(t, []models.Kind{models.KindPassword, models.KindInternetPassword}, kinds)
			return []models.Record{rec}, nil
		},
	}

	res := serve(t, svc, "alice", http.MethodGet, "/api/items?kind=genericPassword&kind=internetPassword", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var got []ItemResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID(), got[0].ID)

	res = serve(t, svc, "alice", http.MethodGet, "/api/items?kind=secureNote", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestKeychainHandler_ListEmpty(t *testing.T) {
	svc := &fakeKeychainService{
		RecordsFunc: func(context.Context, string, ...models.Kind) ([]models.Record, error) { return nil, nil },
	}
	res := serve(t, svc, "alice", http.MethodGet, "/api/items", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `[]`, res.Body.String())
}

func TestKeychainHandler_GetAndDelete(t *testing.T) {
	rec := pinRecord(t)
	svc := &fakeKeychainService{
		GetByIDFunc: func(ctx context.Context, owner, id string) (*models.Record, error) {
			if id != rec.ID() {
				return nil, models.ErrItemNotFound
			}
			r := rec.Clone()
			return &r, nil
		},
		DeleteByIDFunc: func(ctx context.Context, owner, id string) error {
			if id != rec.ID() {
				return fmt.Errorf("delete item: %w", models.ErrItemNotFound)
			}
			return nil
		},
	}

	res := serve(t, svc, "alice", http.MethodGet, "/api/items/"+rec.ID(), nil)
	require.Equal(t, http.StatusOK, res.Code)
	var got ItemResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, rec.Key, got.Key)

	assert.Equal(t, http.StatusNotFound, serve(t, svc, "alice", http.MethodGet, "/api/items/missing", nil).Code)
	assert.Equal(t, http.StatusNoContent, serve(t, svc, "alice", http.MethodDelete, "/api/items/"+rec.ID(), nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(t, svc, "alice", http.MethodDelete, "/api/items/missing", nil).Code)
}

func TestKeychainHandler_Clear(t *testing.T) {
	svc := &fakeKeychainService{
		ClearFunc: func(ctx context.Context, owner string, kinds ...models.Kind) (int64, error) {
			assert.Equal(t, "bob", owner)
			assert.Equal(t, []models.Kind{models.KindInternetPassword}, kinds)
			return 4, nil
		},
	}
	res := serve(t, svc, "bob", http.MethodDelete, "/api/items?kind=internetPassword", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"removed":4}`, res.Body.String())
}
