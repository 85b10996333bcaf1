package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/atinyakov/GophKeychain/internal/models"
)

// NewAEADFromKeyPEM derives an AES-256-GCM cipher from the client private
// key PEM. The same key always yields the same cipher.
func NewAEADFromKeyPEM(keyPEM []byte) (cipher.AEAD, error) {
	if len(keyPEM) == 0 {
		return nil, errors.New("empty key material")
	}
	key := sha256.Sum256(keyPEM)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// Sealer encrypts the secret of a record for storage at rest. Only the
// models.ValueKey entry is sealed; keys stay readable so the file can be
// searched without the client key.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer wraps aead.
func NewSealer(aead cipher.AEAD) *Sealer {
	return &Sealer{aead: aead}
}

// Seal returns a copy of rec with its secret replaced by
// base64(nonce || ciphertext). The record id is bound as additional data.
func (s *Sealer) Seal(rec models.Record) (models.Record, error) {
	out := rec.Clone()
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return models.Record{}, fmt.Errorf("generate nonce: %w", err)
	}
	ct := s.aead.Seal(nonce, nonce, []byte(rec.Secret()), []byte(rec.ID()))
	if out.Value == nil {
		out.Value = map[string]string{}
	}
	out.Value[models.ValueKey] = base64.StdEncoding.EncodeToString(ct)
	return out, nil
}

// Open reverses Seal.
func (s *Sealer) Open(rec models.Record) (models.Record, error) {
	raw, err := base64.StdEncoding.DecodeString(rec.Secret())
	if err != nil {
		return models.Record{}, fmt.Errorf("decode sealed value: %w", err)
	}
	if len(raw) < s.aead.NonceSize() {
		return models.Record{}, errors.New("sealed value too short")
	}
	nonce, ct := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ct, []byte(rec.ID()))
	if err != nil {
		return models.Record{}, fmt.Errorf("decrypt value: %w", err)
	}
	out := rec.Clone()
	out.Value[models.ValueKey] = string(plain)
	return out, nil
}
