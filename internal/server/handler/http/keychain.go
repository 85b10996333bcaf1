package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/GophKeychain/internal/middleware"
	"github.com/atinyakov/GophKeychain/internal/models"
	"github.com/go-chi/chi/v5"
)

// KeychainService is the part of service.KeychainService the item
// endpoints need.
type KeychainService interface {
	Add(ctx context.Context, owner string, item models.Item) (models.Record, error)
	Update(ctx context.Context, owner string, item models.Item) (models.Record, error)
	GetByID(ctx context.Context, owner, id string) (*models.Record, error)
	DeleteByID(ctx context.Context, owner, id string) error
	Records(ctx context.Context, owner string, kinds ...models.Kind) ([]models.Record, error)
	Clear(ctx context.Context, owner string, kinds ...models.Kind) (int64, error)
}

// ItemResponse is a stored record together with its id.
type ItemResponse struct {
	ID string `json:"id"`
	models.Record
}

// ClearResponse reports how many items a clear removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// KeychainHandler serves the /api/items endpoints for the owner named by
// the client certificate.
type KeychainHandler struct {
	KeychainService KeychainService
}

// Add stores the record in the request body as a new item.
// It answers 201, 409 when the item exists, or 400 for records that do
// not describe an item.
func (h *KeychainHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, http.StatusCreated, h.KeychainService.Add)
}

// Update replaces a stored item. It answers 200 or 404.
func (h *KeychainHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, http.StatusOK, h.KeychainService.Update)
}

func (h *KeychainHandler) write(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	op func(context.Context, string, models.Item) (models.Record, error),
) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var rec models.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	item, err := models.Decode(rec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stored, err := op(r.Context(), owner, item)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, status, ItemResponse{ID: stored.ID(), Record: stored})
}

// List returns the owner's items, optionally restricted by repeated
// "kind" query parameters.
func (h *KeychainHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	kinds, err := queryKinds(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	recs, err := h.KeychainService.Records(r.Context(), owner, kinds...)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]ItemResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ItemResponse{ID: rec.ID(), Record: rec})
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns the item stored under the {id} path parameter.
func (h *KeychainHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	rec, err := h.KeychainService.GetByID(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ItemResponse{ID: rec.ID(), Record: *rec})
}

// Delete removes the item stored under the {id} path parameter.
func (h *KeychainHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	if err := h.KeychainService.DeleteByID(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear removes the owner's items of the requested kinds, or all of them.
func (h *KeychainHandler) Clear(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	kinds, err := queryKinds(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := h.KeychainService.Clear(r.Context(), owner, kinds...)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClearResponse{Removed: n})
}

func (h *KeychainHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrItemNotFound):
		http.Error(w, "item not found", http.StatusNotFound)
	case errors.Is(err, models.ErrDuplicateItem):
		http.Error(w, "item already exists", http.StatusConflict)
	case errors.Is(err, models.ErrMalformedRecord):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		// the service has already logged it
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := middleware.OwnerFromContext(r.Context())
	if owner == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return "", false
	}
	return owner, true
}

var errUnknownKind = errors.New("unknown item kind")

func queryKinds(r *http.Request) ([]models.Kind, error) {
	var kinds []models.Kind
	for _, k := range r.URL.Query()["kind"] {
		kind := models.Kind(k)
		if !kind.Valid() {
			return nil, errUnknownKind
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
