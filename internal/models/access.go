package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAccessLevel is returned when a string does not name an AccessLevel.
var ErrUnknownAccessLevel = errors.New("unknown access level")

// AccessLevel is the policy that decides when a stored secret may be read.
// The values mirror the platform kSecAttrAccessible* attributes.
type AccessLevel int

const (
	// AccessibleAfterFirstUnlock is readable once the device has been unlocked after boot.
	AccessibleAfterFirstUnlock AccessLevel = iota
	// AccessibleAfterFirstUnlockThisDeviceOnly is AccessibleAfterFirstUnlock without migration to other devices.
	AccessibleAfterFirstUnlockThisDeviceOnly
	// AccessibleAlways is readable regardless of the lock state.
	AccessibleAlways
	// AccessibleWhenPasscodeSetThisDeviceOnly is readable while unlocked and only when a passcode is set.
	AccessibleWhenPasscodeSetThisDeviceOnly
	// AccessibleAlwaysThisDeviceOnly is AccessibleAlways without migration to other devices.
	AccessibleAlwaysThisDeviceOnly
	// AccessibleWhenUnlocked is readable only while the device is unlocked.
	AccessibleWhenUnlocked
	// AccessibleWhenUnlockedThisDeviceOnly is AccessibleWhenUnlocked without migration to other devices.
	AccessibleWhenUnlockedThisDeviceOnly
)

// DefaultAccessLevel is used when a constructor is not given an explicit level.
const DefaultAccessLevel = AccessibleWhenUnlocked

var accessLevelNames = [...]string{
	AccessibleAfterFirstUnlock:               "afterFirstUnlock",
	AccessibleAfterFirstUnlockThisDeviceOnly: "afterFirstUnlockThisDeviceOnly",
	AccessibleAlways:                         "always",
	AccessibleWhenPasscodeSetThisDeviceOnly:  "whenPasscodeSetThisDeviceOnly",
	AccessibleAlwaysThisDeviceOnly:           "alwaysThisDeviceOnly",
	AccessibleWhenUnlocked:                   "whenUnlocked",
	AccessibleWhenUnlockedThisDeviceOnly:     "whenUnlockedThisDeviceOnly",
}

var accessLevelNative = [...]string{
	AccessibleAfterFirstUnlock:               "ck",
	AccessibleAfterFirstUnlockThisDeviceOnly: "cku",
	AccessibleAlways:                         "dk",
	AccessibleWhenPasscodeSetThisDeviceOnly:  "akpu",
	AccessibleAlwaysThisDeviceOnly:           "dku",
	AccessibleWhenUnlocked:                   "ak",
	AccessibleWhenUnlockedThisDeviceOnly:     "aku",
}

// Valid reports whether a is one of the seven declared levels.
func (a AccessLevel) Valid() bool {
	return a >= AccessibleAfterFirstUnlock && a <= AccessibleWhenUnlockedThisDeviceOnly
}

// String returns the level name used in key/value projections.
func (a AccessLevel) String() string {
	if !a.Valid() {
		return fmt.Sprintf("AccessLevel(%d)", int(a))
	}
	return accessLevelNames[a]
}

// Native returns the platform attribute value (kSecAttrAccessible*) for a.
func (a AccessLevel) Native() string {
	if !a.Valid() {
		return ""
	}
	return accessLevelNative[a]
}

// ThisDeviceOnly reports whether items with this level must stay on the device that created them.
func (a AccessLevel) ThisDeviceOnly() bool {
	return strings.HasSuffix(a.String(), "ThisDeviceOnly")
}

// ParseAccessLevel accepts either a level name ("whenUnlocked") or its native
// platform value ("ak").
func ParseAccessLevel(s string) (AccessLevel, error) {
	for i, name := range accessLevelNames {
		if s == name || s == accessLevelNative[i] {
			return AccessLevel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAccessLevel, s)
}

// MarshalText implements encoding.TextMarshaler.
func (a AccessLevel) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAccessLevel, int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccessLevel) UnmarshalText(text []byte) error {
	lvl, err := ParseAccessLevel(string(text))
	if err != nil {
		return err
	}
	*a = lvl
	return nil
}
