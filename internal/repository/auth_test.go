package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atinyakov/GophKeychain/internal/models"
)

const (
	userExistsQuery = `SELECT EXISTS(SELECT 1 FROM users WHERE login = $1)`
	insertUserQuery = `INSERT INTO users (login) VALUES ($1) ON CONFLICT DO NOTHING`
)

func setupAuthMock(t *testing.T) (*PostgresAuthRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresAuthRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

func TestUserExists(t *testing.T) {
	for _, want := range []bool{true, false} {
		repo, mock, cleanup := setupAuthMock(t)

		mock.ExpectQuery(regexp.QuoteMeta(userExistsQuery)).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(want))

		got, err := repo.UserExists(context.Background(), "alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("UserExists = %v; want %v", got, want)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		cleanup()
	}
}

func TestUserExists_WrapsDriverError(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	driverErr := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(userExistsQuery)).
		WithArgs("alice").
		WillReturnError(driverErr)

	_, err := repo.UserExists(context.Background(), "alice")
	if !errors.Is(err, driverErr) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
	if !regexp.MustCompile(`^user exists: `).MatchString(err.Error()) {
		t.Errorf("unexpected error message %q", err)
	}
}

func TestRegisterUser_Inserted(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(insertUserQuery)).
		WithArgs("bob").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RegisterUser(context.Background(), "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRegisterUser_LoginTaken(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	// the conflicting insert is swallowed by ON CONFLICT and touches no row
	mock.ExpectExec(regexp.QuoteMeta(insertUserQuery)).
		WithArgs("bob").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RegisterUser(context.Background(), "bob")
	if !errors.Is(err, models.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRegisterUser_WrapsDriverError(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	driverErr := errors.New("insert failed")
	mock.ExpectExec(regexp.QuoteMeta(insertUserQuery)).
		WithArgs("bob").
		WillReturnError(driverErr)

	err := repo.RegisterUser(context.Background(), "bob")
	if !errors.Is(err, driverErr) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
	if errors.Is(err, models.ErrUserExists) {
		t.Errorf("driver failure must not look like a taken login: %v", err)
	}
}

func TestRegisterUser_RowsAffectedError(t *testing.T) {
	repo, mock, cleanup := setupAuthMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(insertUserQuery)).
		WithArgs("bob").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("no result")))

	err := repo.RegisterUser(context.Background(), "bob")
	if err == nil || !regexp.MustCompile(`^rows affected: `).MatchString(err.Error()) {
		t.Fatalf("expected rows affected error, got %v", err)
	}
}
