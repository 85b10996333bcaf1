package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atinyakov/GophKeychain/internal/models"
)

// PostgresAuthRepository stores keychain owners in the users table.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with the given database connection.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// UserExists checks whether a user with the specified login exists in the database.
func (r *PostgresAuthRepository) UserExists(ctx context.Context, login string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE login = $1)`,
		login,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

// RegisterUser inserts a new user. It fails with models.ErrUserExists when
// the login is taken, including by a concurrent registration.
func (r *PostgresAuthRepository) RegisterUser(ctx context.Context, login string) error {
	res, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO users (login) VALUES ($1) ON CONFLICT DO NOTHING`,
		login,
	)
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	return requireRow(res, models.ErrUserExists)
}
