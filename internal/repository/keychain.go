// Package repository provides persistence implementations for the
// authentication and keychain services.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/GophKeychain/internal/models"
	"github.com/lib/pq"
)

// PostgresKeychainRepository stores keychain records in PostgreSQL, one row
// per (owner, record id). Deleted rows are kept with deleted = true until the
// soft-delete cleaner purges them.
type PostgresKeychainRepository struct {
	// DB is the database handle for executing queries.
	DB  *sql.DB
	now func() time.Time
}

// NewPostgresKeychainRepository creates a PostgresKeychainRepository using the provided *sql.DB.
func NewPostgresKeychainRepository(db *sql.DB) *PostgresKeychainRepository {
	return &PostgresKeychainRepository{DB: db, now: time.Now}
}

// Exists reports whether a live record with the given id exists for owner.
func (r *PostgresKeychainRepository) Exists(ctx context.Context, owner, id string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM keychain_items WHERE user_login = $1 AND id = $2 AND deleted = false)
	`, owner, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return exists, nil
}

// Insert stores rec. A soft-deleted row with the same id is revived; a live
// one makes Insert fail with models.ErrDuplicateItem.
func (r *PostgresKeychainRepository) Insert(ctx context.Context, owner string, rec models.Record) error {
	key, value, err := encodeMaps(rec)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO keychain_items (id, user_login, item_class, item_key, item_value, access_level, version, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)
		ON CONFLICT (user_login, id) DO UPDATE SET
			item_class = EXCLUDED.item_class,
			item_key = EXCLUDED.item_key,
			item_value = EXCLUDED.item_value,
			access_level = EXCLUDED.access_level,
			version = EXCLUDED.version,
			deleted = false
		WHERE keychain_items.deleted = true
	`, rec.ID(), owner, string(rec.Kind()), key, value, rec.AccessLevel.String(), rec.Version)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return requireRow(res, models.ErrDuplicateItem)
}

// Update replaces the value, access level and version of a live record.
func (r *PostgresKeychainRepository) Update(ctx context.Context, owner string, rec models.Record) error {
	_, value, err := encodeMaps(rec)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE keychain_items SET item_value = $3, access_level = $4, version = $5
		WHERE user_login = $1 AND id = $2 AND deleted = false
	`, owner, rec.ID(), value, rec.AccessLevel.String(), rec.Version)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return requireRow(res, models.ErrItemNotFound)
}

// Get fetches a live record by id.
func (r *PostgresKeychainRepository) Get(ctx context.Context, owner, id string) (*models.Record, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT item_key, item_value, access_level, version FROM keychain_items
		WHERE user_login = $1 AND id = $2 AND deleted = false
	`, owner, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	return rec, nil
}

// Delete soft-deletes a live record. The version is set to the deletion time
// so the cleaner can apply its retention window.
func (r *PostgresKeychainRepository) Delete(ctx context.Context, owner, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE keychain_items SET deleted = true, version = $3
		WHERE user_login = $1 AND id = $2 AND deleted = false
	`, owner, id, r.now().Unix())
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return requireRow(res, models.ErrItemNotFound)
}

// List returns live records of the given kinds ordered by class and id.
func (r *PostgresKeychainRepository) List(ctx context.Context, owner string, kinds []models.Kind) ([]models.Record, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT item_key, item_value, access_level, version FROM keychain_items
		WHERE user_login = $1 AND deleted = false AND item_class = ANY($2)
		ORDER BY item_class, id
	`, owner, pq.Array(classes(kinds)))
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	var recs []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return recs, nil
}

// Clear soft-deletes every live record of the given kinds.
func (r *PostgresKeychainRepository) Clear(ctx context.Context, owner string, kinds []models.Kind) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE keychain_items SET deleted = true, version = $3
		WHERE user_login = $1 AND deleted = false AND item_class = ANY($2)
	`, owner, pq.Array(classes(kinds)), r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("clear: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		key, value []byte
		level      string
		rec        models.Record
	)
	if err := row.Scan(&key, &value, &level, &rec.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(key, &rec.Key); err != nil {
		return nil, fmt.Errorf("decode item_key: %w", err)
	}
	if err := json.Unmarshal(value, &rec.Value); err != nil {
		return nil, fmt.Errorf("decode item_value: %w", err)
	}
	lvl, err := models.ParseAccessLevel(level)
	if err != nil {
		return nil, err
	}
	rec.AccessLevel = lvl
	return &rec, nil
}

func encodeMaps(rec models.Record) ([]byte, []byte, error) {
	key, err := json.Marshal(rec.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("encode item_key: %w", err)
	}
	value, err := json.Marshal(rec.Value)
	if err != nil {
		return nil, nil, fmt.Errorf("encode item_value: %w", err)
	}
	return key, value, nil
}

func requireRow(res sql.Result, notAffected error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notAffected
	}
	return nil
}

func classes(kinds []models.Kind) []string {
	if len(kinds) == 0 {
		kinds = models.Kinds
	}
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
