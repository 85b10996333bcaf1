package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/GophKeychain/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

// Identifiers of the password items holding the master credentials.
const (
	MasterPasswordIdentifier = "GophKeychain_Master_Password_Identifier"
	MasterSaltIdentifier     = "GophKeychain_Master_Salt_Identifier"
)

const (
	hashIterations = 4096
	hashKeyLength  = 16
	saltLength     = 16
)

var (
	// ErrNoCredentials is returned by Verify before a master password is set.
	ErrNoCredentials = errors.New("no master password is set")
	// ErrWrongMasterPassword is returned by Verify for a password that does not match.
	ErrWrongMasterPassword = errors.New("wrong master password")
	// ErrEmptyMasterPassword is returned by SetMasterPassword for an empty password.
	ErrEmptyMasterPassword = errors.New("master password must not be empty")
)

// Credentials keeps an owner's master password hash and its salt as two
// password items that never leave the device. Everything it returns is
// secret and must not be logged.
type Credentials struct {
	keychain *KeychainService
	owner    string
}

// NewCredentials returns the master credentials of owner stored through keychain.
func NewCredentials(keychain *KeychainService, owner string) *Credentials {
	return &Credentials{keychain: keychain, owner: owner}
}

// CurrentPassword returns the stored master password hash, or "" when there is none.
func (c *Credentials) CurrentPassword(ctx context.Context) (string, error) {
	return c.value(ctx, MasterPasswordIdentifier)
}

// CurrentSalt returns the stored salt, or "" when there is none.
func (c *Credentials) CurrentSalt(ctx context.Context) (string, error) {
	return c.value(ctx, MasterSaltIdentifier)
}

// HasCredentials reports whether both a non-empty hash and salt are stored.
func (c *Credentials) HasCredentials(ctx context.Context) (bool, error) {
	hash, err := c.CurrentPassword(ctx)
	if err != nil {
		return false, err
	}
	salt, err := c.CurrentSalt(ctx)
	if err != nil {
		return false, err
	}
	return hash != "" && salt != "", nil
}

// Update stores password and salt, adding the items the first time and
// replacing them afterwards.
func (c *Credentials) Update(ctx context.Context, password, salt string) error {
	for _, e := range []struct{ identifier, secret string }{
		{MasterPasswordIdentifier, password},
		{MasterSaltIdentifier, salt},
	} {
		item, err := models.NewPasswordItem(e.secret, e.identifier,
			models.WithAccessLevel(models.AccessibleWhenUnlockedThisDeviceOnly))
		if err != nil {
			return err
		}
		exists, err := c.keychain.Contains(ctx, c.owner, item)
		if err != nil {
			return fmt.Errorf("store master credentials: %w", err)
		}
		if exists {
			_, err = c.keychain.Update(ctx, c.owner, item)
		} else {
			_, err = c.keychain.Add(ctx, c.owner, item)
		}
		if err != nil {
			return fmt.Errorf("store master credentials: %w", err)
		}
	}
	return nil
}

// SetMasterPassword stores the hash of password under a fresh salt.
func (c *Credentials) SetMasterPassword(ctx context.Context, password string) error {
	if password == "" {
		return ErrEmptyMasterPassword
	}
	salt := RandomSalt()
	return c.Update(ctx, DerivePasswordHash(password, salt), salt)
}

// Verify checks password against the stored hash.
func (c *Credentials) Verify(ctx context.Context, password string) error {
	hash, err := c.CurrentPassword(ctx)
	if err != nil {
		return err
	}
	salt, err := c.CurrentSalt(ctx)
	if err != nil {
		return err
	}
	if hash == "" || salt == "" {
		return ErrNoCredentials
	}
	if subtle.ConstantTimeCompare([]byte(DerivePasswordHash(password, salt)), []byte(hash)) != 1 {
		return ErrWrongMasterPassword
	}
	return nil
}

func (c *Credentials) value(ctx context.Context, identifier string) (string, error) {
	lookup, err := models.NewPasswordItem("", identifier)
	if err != nil {
		return "", err
	}
	v, err := c.keychain.ValueFor(ctx, c.owner, lookup)
	if errors.Is(err, models.ErrItemNotFound) {
		return "", nil
	}
	return v, err
}

// RandomSalt returns 16 random hex characters.
func RandomSalt() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:saltLength]
}

// DerivePasswordHash returns hex(PBKDF2-SHA256(password, salt)) with 4096
// iterations and a 16 byte key.
func DerivePasswordHash(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), hashIterations, hashKeyLength, sha256.New)
	return hex.EncodeToString(key)
}
