package repository

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/atinyakov/GophKeychain/internal/models"
	"github.com/zalando/go-keyring"
)

// keyringIndexAccount holds the id -> kind index of one owner. The OS
// keyring cannot enumerate entries, so listing and clearing go through it.
const keyringIndexAccount = models.KeyPrefix + "index"

// KeyringRepository stores keychain records in the operating system
// credential store (macOS Keychain, Secret Service, Windows Credential
// Manager). Every owner gets its own keyring service "<service>.<owner>";
// each record is a JSON secret under its record id.
//
// The access level travels with the record but is not enforced by the OS
// store.
type KeyringRepository struct {
	service string
	mu      sync.Mutex
}

// NewKeyringRepository returns a repository that uses service as the keyring service prefix.
func NewKeyringRepository(service string) *KeyringRepository {
	return &KeyringRepository{service: service}
}

func (r *KeyringRepository) serviceFor(owner string) string {
	if owner == "" {
		return r.service
	}
	return r.service + "." + owner
}

// Exists reports whether a record with the given id is stored for owner.
func (r *KeyringRepository) Exists(_ context.Context, owner, id string) (bool, error) {
	_, err := keyring.Get(r.serviceFor(owner), id)
	if errors.Is(err, keyring.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("keyring get: %w", err)
	}
	return true, nil
}

// Insert stores rec, failing with models.ErrDuplicateItem when its id is taken.
func (r *KeyringRepository) Insert(ctx context.Context, owner string, rec models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.Exists(ctx, owner, rec.ID())
	if err != nil {
		return err
	}
	if exists {
		return models.ErrDuplicateItem
	}
	if err := r.put(owner, rec); err != nil {
		return err
	}

	idx, err := r.loadIndex(owner)
	if err != nil {
		return err
	}
	idx[rec.ID()] = rec.Kind()
	return r.saveIndex(owner, idx)
}

// Update replaces a stored record, failing with models.ErrItemNotFound when there is none.
func (r *KeyringRepository) Update(ctx context.Context, owner string, rec models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.Exists(ctx, owner, rec.ID())
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrItemNotFound
	}
	return r.put(owner, rec)
}

// Get fetches the record stored under id.
func (r *KeyringRepository) Get(_ context.Context, owner, id string) (*models.Record, error) {
	secret, err := keyring.Get(r.serviceFor(owner), id)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, models.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keyring get: %w", err)
	}
	var rec models.Record
	if err := json.Unmarshal([]byte(secret), &rec); err != nil {
		return nil, fmt.Errorf("decode keyring record: %w", err)
	}
	return &rec, nil
}

// Delete removes the record stored under id.
func (r *KeyringRepository) Delete(_ context.Context, owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := keyring.Delete(r.serviceFor(owner), id)
	if errors.Is(err, keyring.ErrNotFound) {
		return models.ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("keyring delete: %w", err)
	}

	idx, err := r.loadIndex(owner)
	if err != nil {
		return err
	}
	delete(idx, id)
	return r.saveIndex(owner, idx)
}

// List returns the records of the given kinds ordered by kind and id.
func (r *KeyringRepository) List(ctx context.Context, owner string, kinds []models.Kind) ([]models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := r.loadIndex(owner)
	if err != nil {
		return nil, err
	}
	var recs []models.Record
	for _, id := range matching(idx, kinds) {
		rec, err := r.Get(ctx, owner, id)
		if errors.Is(err, models.ErrItemNotFound) {
			// removed behind our back
			continue
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}

// Clear removes the records of the given kinds.
func (r *KeyringRepository) Clear(_ context.Context, owner string, kinds []models.Kind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := r.loadIndex(owner)
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, id := range matching(idx, kinds) {
		err := keyring.Delete(r.serviceFor(owner), id)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			_ = r.saveIndex(owner, idx)
			return removed, fmt.Errorf("keyring delete: %w", err)
		}
		if err == nil {
			removed++
		}
		delete(idx, id)
	}
	return removed, r.saveIndex(owner, idx)
}

func (r *KeyringRepository) put(owner string, rec models.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode keyring record: %w", err)
	}
	if err := keyring.Set(r.serviceFor(owner), rec.ID(), string(b)); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

func (r *KeyringRepository) loadIndex(owner string) (map[string]models.Kind, error) {
	idx := make(map[string]models.Kind)
	raw, err := keyring.Get(r.serviceFor(owner), keyringIndexAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keyring index: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &idx); err != nil {
		return nil, fmt.Errorf("decode keyring index: %w", err)
	}
	return idx, nil
}

func (r *KeyringRepository) saveIndex(owner string, idx map[string]models.Kind) error {
	if len(idx) == 0 {
		err := keyring.Delete(r.serviceFor(owner), keyringIndexAccount)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("keyring index: %w", err)
		}
		return nil
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode keyring index: %w", err)
	}
	if err := keyring.Set(r.serviceFor(owner), keyringIndexAccount, string(b)); err != nil {
		return fmt.Errorf("keyring index: %w", err)
	}
	return nil
}

// matching returns the ids in idx whose kind is in kinds (any kind when
// kinds is empty), ordered by kind and then id.
func matching(idx map[string]models.Kind, kinds []models.Kind) []string {
	ids := make([]string, 0, len(idx))
	for id, kind := range idx {
		if len(kinds) == 0 || slices.Contains(kinds, kind) {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(cmp.Compare(idx[a], idx[b]), cmp.Compare(a, b))
	})
	return ids
}
