package models

// MobileAppPasswordItem is a credential for a mobile application. The
// application and account names are fixed at construction.
type MobileAppPasswordItem struct {
	Base
	identifier      string
	applicationName string
	accountName     string
}

// NewMobileAppPasswordItem builds a MobileAppPasswordItem. The application
// name becomes the description and, through the identifier fallback, the
// identifier.
func NewMobileAppPasswordItem(password, applicationName, accountName string, opts ...Option) (*MobileAppPasswordItem, error) {
	o, err := applyOptions(KindMobileAppPassword, opts)
	if err != nil {
		return nil, err
	}
	if applicationName == "" {
		return nil, missing(KindMobileAppPassword, "applicationName")
	}
	if accountName == "" {
		return nil, missing(KindMobileAppPassword, "accountName")
	}
	description := applicationName
	if o.hasDescription && o.description != "" {
		description = o.description
	}
	return &MobileAppPasswordItem{
		Base:            Base{Description: description, Secret: password, AccessLevel: o.accessLevel},
		identifier:      ResolveIdentifier("", description),
		applicationName: applicationName,
		accountName:     accountName,
	}, nil
}

func (*MobileAppPasswordItem) sealed() {}

// Kind implements Item.
func (*MobileAppPasswordItem) Kind() Kind { return KindMobileAppPassword }

// Fields implements Item.
func (m *MobileAppPasswordItem) Fields() Base { return m.Base }

// Password returns the stored password.
func (m *MobileAppPasswordItem) Password() string { return m.Secret }

// SetPassword replaces the stored password.
func (m *MobileAppPasswordItem) SetPassword(password string) { m.Secret = password }

// Identifier returns the resolved identifier.
func (m *MobileAppPasswordItem) Identifier() string { return m.identifier }

// ApplicationName returns the application the credential belongs to.
func (m *MobileAppPasswordItem) ApplicationName() string { return m.applicationName }

// AccountName returns the account or user name within the application.
func (m *MobileAppPasswordItem) AccountName() string { return m.accountName }

// Key implements Item.
func (m *MobileAppPasswordItem) Key() map[string]string {
	return map[string]string{
		ClassKey:           string(KindMobileAppPassword),
		IdentifierKey:      m.identifier,
		AccountNameKey:     m.accountName,
		ApplicationNameKey: m.applicationName,
	}
}

// Value implements Item.
func (m *MobileAppPasswordItem) Value() map[string]string { return m.Base.value() }

// Equal implements Item. Unlike the plain password item, the application
// and account names take part in the comparison.
func (m *MobileAppPasswordItem) Equal(other Item) bool {
	o, ok := other.(*MobileAppPasswordItem)
	if !ok || m == nil || o == nil {
		return ok && m == nil && o == nil
	}
	return equalPassword(m.Base, m.identifier, o.Base, o.identifier) &&
		m.applicationName == o.applicationName &&
		m.accountName == o.accountName
}
