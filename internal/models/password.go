package models

// PasswordItem stores a generic password such as a PIN, passcode or passphrase.
// The identifier distinguishes it from every other password in a store.
type PasswordItem struct {
	Base
	identifier string
}

// NewPasswordItem builds a PasswordItem. When identifier is empty the
// description (see WithDescription) is used instead; if both are empty the
// item has no identity and construction fails.
func NewPasswordItem(password, identifier string, opts ...Option) (*PasswordItem, error) {
	o, err := applyOptions(KindPassword, opts)
	if err != nil {
		return nil, err
	}
	id := ResolveIdentifier(identifier, o.description)
	if id == "" {
		return nil, missing(KindPassword, "identifier")
	}
	return &PasswordItem{
		Base:       Base{Description: o.description, Secret: password, AccessLevel: o.accessLevel},
		identifier: id,
	}, nil
}

func (*PasswordItem) sealed() {}

// Kind implements Item.
func (*PasswordItem) Kind() Kind { return KindPassword }

// Fields implements Item.
func (p *PasswordItem) Fields() Base { return p.Base }

// Password returns the stored password.
func (p *PasswordItem) Password() string { return p.Secret }

// SetPassword replaces the stored password.
func (p *PasswordItem) SetPassword(password string) { p.Secret = password }

// Identifier returns the resolved identifier.
func (p *PasswordItem) Identifier() string { return p.identifier }

// SetIdentifier replaces the identifier, falling back to the description when
// id is empty. It returns false and leaves the item unchanged when neither is set.
func (p *PasswordItem) SetIdentifier(id string) bool {
	resolved := ResolveIdentifier(id, p.Description)
	if resolved == "" {
		return false
	}
	p.identifier = resolved
	return true
}

// Key implements Item.
func (p *PasswordItem) Key() map[string]string {
	return map[string]string{
		ClassKey:      string(KindPassword),
		IdentifierKey: p.identifier,
	}
}

// Value implements Item.
func (p *PasswordItem) Value() map[string]string { return p.Base.value() }

// Equal implements Item.
func (p *PasswordItem) Equal(other Item) bool {
	o, ok := other.(*PasswordItem)
	if !ok || p == nil || o == nil {
		return ok && p == nil && o == nil
	}
	return equalPassword(p.Base, p.identifier, o.Base, o.identifier)
}

func equalPassword(a Base, aid string, b Base, bid string) bool {
	return a.equal(b) && aid == bid
}
