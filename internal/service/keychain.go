// Package service provides business-logic services for authentication and
// keychain item storage, delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/GophKeychain/internal/models"
	"go.uber.org/zap"
)

// KeychainRepository is the storage collaborator behind KeychainService.
// Records are addressed by owner and models.Record.ID.
type KeychainRepository interface {
	// Exists reports whether a live record with the given id exists.
	Exists(ctx context.Context, owner, id string) (bool, error)
	// Insert stores a new record. It returns models.ErrDuplicateItem when the id is taken.
	Insert(ctx context.Context, owner string, rec models.Record) error
	// Update replaces an existing record. It returns models.ErrItemNotFound when there is none.
	Update(ctx context.Context, owner string, rec models.Record) error
	// Get fetches a record. It returns models.ErrItemNotFound when there is none.
	Get(ctx context.Context, owner, id string) (*models.Record, error)
	// Delete removes a record. It returns models.ErrItemNotFound when there is none.
	Delete(ctx context.Context, owner, id string) error
	// List returns the records of the given kinds, or of every kind when kinds is empty.
	List(ctx context.Context, owner string, kinds []models.Kind) ([]models.Record, error)
	// Clear removes the records of the given kinds, or of every kind when kinds is empty,
	// and reports how many were removed.
	Clear(ctx context.Context, owner string, kinds []models.Kind) (int64, error)
}

// KeychainService implements keychain operations on top of a KeychainRepository.
type KeychainService struct {
	repo KeychainRepository
	log  *zap.Logger
	now  func() time.Time
}

// NewKeychainService constructs a KeychainService. A nil logger disables logging.
func NewKeychainService(repo KeychainRepository, log *zap.Logger) *KeychainService {
	if log == nil {
		log = zap.NewNop()
	}
	return &KeychainService{repo: repo, log: log, now: time.Now}
}

// Contains reports whether the store holds an item with the same key as item.
func (s *KeychainService) Contains(ctx context.Context, owner string, item models.Item) (bool, error) {
	rec := models.Project(item)
	ok, err := s.repo.Exists(ctx, owner, rec.ID())
	if err != nil {
		return false, s.fail("contains", owner, rec, err)
	}
	return ok, nil
}

// Add stores item. It fails with models.ErrDuplicateItem when an item with
// the same key is already stored.
func (s *KeychainService) Add(ctx context.Context, owner string, item models.Item) (models.Record, error) {
	rec := s.stamp(item)
	if err := s.repo.Insert(ctx, owner, rec); err != nil {
		return models.Record{}, s.fail("add", owner, rec, err)
	}
	s.log.Debug("keychain item added", zap.String("owner", owner), zap.String("kind", string(rec.Kind())), zap.String("id", rec.ID()))
	return rec, nil
}

// Update replaces the stored item that has the same key as item.
func (s *KeychainService) Update(ctx context.Context, owner string, item models.Item) (models.Record, error) {
	rec := s.stamp(item)
	if err := s.repo.Update(ctx, owner, rec); err != nil {
		return models.Record{}, s.fail("update", owner, rec, err)
	}
	s.log.Debug("keychain item updated", zap.String("owner", owner), zap.String("kind", string(rec.Kind())), zap.String("id", rec.ID()))
	return rec, nil
}

// Save adds item, or updates it when it is already stored.
func (s *KeychainService) Save(ctx context.Context, owner string, item models.Item) (models.Record, error) {
	rec, err := s.Add(ctx, owner, item)
	if errors.Is(err, models.ErrDuplicateItem) {
		return s.Update(ctx, owner, item)
	}
	return rec, err
}

// Delete removes the stored item that has the same key as item.
func (s *KeychainService) Delete(ctx context.Context, owner string, item models.Item) error {
	return s.DeleteByID(ctx, owner, models.Project(item).ID())
}

// DeleteByID removes the item stored under id.
func (s *KeychainService) DeleteByID(ctx context.Context, owner, id string) error {
	if err := s.repo.Delete(ctx, owner, id); err != nil {
		return s.failID("delete", owner, id, err)
	}
	return nil
}

// Get returns the stored item that has the same key as item.
func (s *KeychainService) Get(ctx context.Context, owner string, item models.Item) (models.Item, error) {
	rec, err := s.GetByID(ctx, owner, models.Project(item).ID())
	if err != nil {
		return nil, err
	}
	return models.Decode(*rec)
}

// GetByID returns the record stored under id.
func (s *KeychainService) GetByID(ctx context.Context, owner, id string) (*models.Record, error) {
	rec, err := s.repo.Get(ctx, owner, id)
	if err != nil {
		return nil, s.failID("get", owner, id, err)
	}
	return rec, nil
}

// ValueFor returns the secret stored for the item with the same key as item.
func (s *KeychainService) ValueFor(ctx context.Context, owner string, item models.Item) (string, error) {
	rec, err := s.GetByID(ctx, owner, models.Project(item).ID())
	if err != nil {
		return "", err
	}
	return rec.Secret(), nil
}

// Records lists stored records of the given kinds (all kinds when none are given).
func (s *KeychainService) Records(ctx context.Context, owner string, kinds ...models.Kind) ([]models.Record, error) {
	recs, err := s.repo.List(ctx, owner, kinds)
	if err != nil {
		s.log.Error("list keychain items failed", zap.String("owner", owner), zap.Error(err))
		return nil, fmt.Errorf("list items: %w", err)
	}
	return recs, nil
}

// Items lists stored items of the given kinds (all kinds when none are given).
func (s *KeychainService) Items(ctx context.Context, owner string, kinds ...models.Kind) ([]models.Item, error) {
	recs, err := s.Records(ctx, owner, kinds...)
	if err != nil {
		return nil, err
	}
	items := make([]models.Item, 0, len(recs))
	for _, rec := range recs {
		item, err := models.Decode(rec)
		if err != nil {
			return nil, fmt.Errorf("decode item %s: %w", rec.ID(), err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Clear removes stored items of the given kinds (all kinds when none are given).
func (s *KeychainService) Clear(ctx context.Context, owner string, kinds ...models.Kind) (int64, error) {
	n, err := s.repo.Clear(ctx, owner, kinds)
	if err != nil {
		s.log.Error("clear keychain items failed", zap.String("owner", owner), zap.Error(err))
		return 0, fmt.Errorf("clear items: %w", err)
	}
	s.log.Info("keychain items cleared", zap.String("owner", owner), zap.Int64("removed", n))
	return n, nil
}

// ClearPasswordItems removes every generic password.
func (s *KeychainService) ClearPasswordItems(ctx context.Context, owner string) (int64, error) {
	return s.Clear(ctx, owner, models.KindPassword)
}

// ClearInternetPasswordItems removes every internet password.
func (s *KeychainService) ClearInternetPasswordItems(ctx context.Context, owner string) (int64, error) {
	return s.Clear(ctx, owner, models.KindInternetPassword)
}

// ClearAll removes every stored item.
func (s *KeychainService) ClearAll(ctx context.Context, owner string) (int64, error) {
	return s.Clear(ctx, owner)
}

func (s *KeychainService) stamp(item models.Item) models.Record {
	rec := models.Project(item)
	rec.Version = s.now().Unix()
	return rec
}

func (s *KeychainService) fail(op, owner string, rec models.Record, err error) error {
	return s.failID(op+" "+string(rec.Kind()), owner, rec.ID(), err)
}

func (s *KeychainService) failID(op, owner, id string, err error) error {
	if !errors.Is(err, models.ErrItemNotFound) && !errors.Is(err, models.ErrDuplicateItem) {
		s.log.Error("keychain operation failed",
			zap.String("op", op), zap.String("owner", owner), zap.String("id", id), zap.Error(err))
	}
	return fmt.Errorf("%s item: %w", op, err)
}
