package models

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is wrapped by ConstructionError when a required field is empty.
	ErrMissingField = errors.New("required field is missing")
	// ErrInvalidWebsite is wrapped by ConstructionError when a website cannot be parsed.
	ErrInvalidWebsite = errors.New("invalid website url")
	// ErrMalformedRecord is returned by Decode for records no item could have produced.
	ErrMalformedRecord = errors.New("malformed keychain record")

	// ErrItemNotFound is returned by stores when no item matches a key.
	ErrItemNotFound = errors.New("keychain item not found")
	// ErrDuplicateItem is returned by stores when an item with the same key already exists.
	ErrDuplicateItem = errors.New("keychain item already exists")

	// ErrUserExists is returned by the owner store when a login is already registered.
	ErrUserExists = errors.New("user already exists")
)

// ConstructionError reports an item that could not be built from its inputs.
type ConstructionError struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct %s: %s: %v", e.Kind, e.Field, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

func missing(kind Kind, field string) error {
	return &ConstructionError{Kind: kind, Field: field, Err: ErrMissingField}
}
