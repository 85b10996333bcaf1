package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Record is the flat form of an item handed to a storage backend: the key
// that locates it, the value stored under that key and the access level the
// backend must enforce.
type Record struct {
	Key         map[string]string `json:"key"`
	Value       map[string]string `json:"value"`
	AccessLevel AccessLevel       `json:"accessLevel"`
	// Version is stamped by the service on every write.
	Version int64 `json:"version,omitempty"`
}

// Project builds the storage record of item.
func Project(item Item) Record {
	return Record{
		Key:         item.Key(),
		Value:       item.Value(),
		AccessLevel: item.Fields().AccessLevel,
	}
}

// Kind returns the variant stored under ClassKey.
func (r Record) Kind() Kind {
	return Kind(r.Key[ClassKey])
}

// ID returns a stable fingerprint of the record key. Two records share an ID
// exactly when their keys are equal.
func (r Record) ID() string {
	return KeyID(r.Key)
}

// KeyID fingerprints a projected key map.
func KeyID(key map[string]string) string {
	h := sha256.New()
	for _, k := range slices.Sorted(maps.Keys(key)) {
		v := key[k]
		h.Write([]byte(strconv.Itoa(len(k)) + ":" + k + strconv.Itoa(len(v)) + ":" + v))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Secret returns the stored secret value.
func (r Record) Secret() string {
	return r.Value[ValueKey]
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.Key = maps.Clone(r.Key)
	r.Value = maps.Clone(r.Value)
	return r
}

// Decode rebuilds the item a record was projected from. It is the inverse of
// Project: Decode(Project(item)) is Equal to item.
func Decode(r Record) (Item, error) {
	level := r.AccessLevel
	if name, ok := r.Value[AccessLevelKey]; ok {
		parsed, err := ParseAccessLevel(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		level = parsed
	}
	if !level.Valid() {
		return nil, fmt.Errorf("%w: access level %d", ErrMalformedRecord, int(level))
	}

	description := r.Value[DescriptionKey]
	secret := r.Value[ValueKey]
	id := r.Key[IdentifierKey]

	switch kind := r.Kind(); kind {
	case KindGeneric:
		item, err := NewGenericItem(r.Key[DescriptionKey], secret, WithAccessLevel(level))
		if err != nil {
			return nil, malformed(err)
		}
		return item, nil
	case KindPassword:
		item, err := NewPasswordItem(secret, id, WithDescription(description), WithAccessLevel(level))
		if err != nil {
			return nil, malformed(err)
		}
		return item, nil
	case KindInternetPassword:
		item, err := NewInternetPasswordItem(secret, r.Key[AccountNameKey], r.Key[WebsiteKey],
			WithDescription(description), WithAccessLevel(level))
		if err != nil {
			return nil, malformed(err)
		}
		if id != "" {
			item.identifier = id
		}
		return item, nil
	case KindMobileAppPassword:
		item, err := NewMobileAppPasswordItem(secret, r.Key[ApplicationNameKey], r.Key[AccountNameKey],
			WithAccessLevel(level))
		if err != nil {
			return nil, malformed(err)
		}
		item.Description = description
		if id != "" {
			item.identifier = id
		}
		return item, nil
	default:
		return nil, fmt.Errorf("%w: unknown class %q", ErrMalformedRecord, kind)
	}
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedRecord, err)
}
