// Package models defines the keychain item model: the credential variants,
// their identity and equality rules, and the flat key/value projection that
// storage backends persist.
package models

// Kind names the concrete variant of an Item. It is stored under ClassKey.
type Kind string

const (
	// KindGeneric is a plain description/value item.
	KindGeneric Kind = "genericItem"
	// KindPassword is a generic password such as a PIN or passphrase.
	KindPassword Kind = "genericPassword"
	// KindInternetPassword is a web login.
	KindInternetPassword Kind = "internetPassword"
	// KindMobileAppPassword is a credential for a mobile application.
	KindMobileAppPassword Kind = "mobileAppPassword"
)

// Kinds lists every variant in a stable order.
var Kinds = []Kind{KindGeneric, KindPassword, KindInternetPassword, KindMobileAppPassword}

// PasswordKinds lists the variants that carry an identifier.
var PasswordKinds = []Kind{KindPassword, KindInternetPassword, KindMobileAppPassword}

// Valid reports whether k is a known variant.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Item is a credential that can be written to a secure store.
// The concrete types are GenericItem, PasswordItem, InternetPasswordItem
// and MobileAppPasswordItem.
type Item interface {
	// Kind returns the concrete variant.
	Kind() Kind
	// Fields returns a copy of the shared fields.
	Fields() Base
	// Key projects the fields that identify the item in a store.
	Key() map[string]string
	// Value projects the fields a store keeps for the item.
	Value() map[string]string
	// Equal reports structural equality. Items of different kinds are never equal.
	Equal(other Item) bool

	sealed()
}

// Base holds the fields every item carries.
type Base struct {
	Description string
	Secret      string
	AccessLevel AccessLevel
}

func (b Base) equal(o Base) bool {
	return b.Description == o.Description && b.Secret == o.Secret && b.AccessLevel == o.AccessLevel
}

func (b Base) value() map[string]string {
	return map[string]string{
		DescriptionKey: b.Description,
		AccessLevelKey: b.AccessLevel.String(),
		ValueKey:       b.Secret,
	}
}

// Option customises item construction.
type Option func(*options)

type options struct {
	description    string
	hasDescription bool
	accessLevel    AccessLevel
}

// WithDescription sets the human readable description of an item.
func WithDescription(description string) Option {
	return func(o *options) {
		o.description = description
		o.hasDescription = true
	}
}

// WithAccessLevel overrides DefaultAccessLevel.
func WithAccessLevel(level AccessLevel) Option {
	return func(o *options) {
		o.accessLevel = level
	}
}

func applyOptions(kind Kind, opts []Option) (options, error) {
	o := options{accessLevel: DefaultAccessLevel}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.accessLevel.Valid() {
		return o, &ConstructionError{Kind: kind, Field: "accessLevel", Err: ErrUnknownAccessLevel}
	}
	return o, nil
}

// ResolveIdentifier returns explicit, or description when explicit is empty.
func ResolveIdentifier(explicit, description string) string {
	if explicit != "" {
		return explicit
	}
	return description
}

// GenericItem is the base keychain item: a description and a value.
// Prefer one of the password variants for anything that is a credential.
type GenericItem struct {
	Base
}

// NewGenericItem builds a GenericItem. The description identifies the item
// and must not be empty; the value may be.
func NewGenericItem(description, value string, opts ...Option) (*GenericItem, error) {
	o, err := applyOptions(KindGeneric, opts)
	if err != nil {
		return nil, err
	}
	if description == "" {
		return nil, missing(KindGeneric, "description")
	}
	return &GenericItem{Base: Base{Description: description, Secret: value, AccessLevel: o.accessLevel}}, nil
}

func (*GenericItem) sealed() {}

// Kind implements Item.
func (*GenericItem) Kind() Kind { return KindGeneric }

// Fields implements Item.
func (i *GenericItem) Fields() Base { return i.Base }

// Key implements Item.
func (i *GenericItem) Key() map[string]string {
	return map[string]string{
		ClassKey:       string(KindGeneric),
		DescriptionKey: i.Description,
	}
}

// Value implements Item.
func (i *GenericItem) Value() map[string]string { return i.Base.value() }

// Equal implements Item.
func (i *GenericItem) Equal(other Item) bool {
	o, ok := other.(*GenericItem)
	if !ok || i == nil || o == nil {
		return ok && i == nil && o == nil
	}
	return i.Base.equal(o.Base)
}
