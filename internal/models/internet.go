package models

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// InternetPasswordItem is a password for a website login.
type InternetPasswordItem struct {
	Base
	identifier string

	// AccountName is the website account or user name.
	AccountName string
	// Website is the login page. Equality compares its canonical form.
	Website *url.URL
}

// NewInternetPasswordItem builds an InternetPasswordItem. The account name
// doubles as the identifier. Without WithDescription the description is the
// website host minus its leading subdomain ("www.google.com" -> "google.com").
func NewInternetPasswordItem(password, accountName, website string, opts ...Option) (*InternetPasswordItem, error) {
	o, err := applyOptions(KindInternetPassword, opts)
	if err != nil {
		return nil, err
	}
	if accountName == "" {
		return nil, missing(KindInternetPassword, "accountName")
	}
	if strings.TrimSpace(website) == "" {
		return nil, missing(KindInternetPassword, "website")
	}
	u, err := NormalizeWebsite(website)
	if err != nil {
		return nil, &ConstructionError{Kind: KindInternetPassword, Field: "website", Err: err}
	}

	description := o.description
	if !o.hasDescription {
		description = HostWithoutSubdomain(u)
	}
	return &InternetPasswordItem{
		Base:        Base{Description: description, Secret: password, AccessLevel: o.accessLevel},
		identifier:  ResolveIdentifier(accountName, description),
		AccountName: accountName,
		Website:     u,
	}, nil
}

func (*InternetPasswordItem) sealed() {}

// Kind implements Item.
func (*InternetPasswordItem) Kind() Kind { return KindInternetPassword }

// Fields implements Item.
func (p *InternetPasswordItem) Fields() Base { return p.Base }

// Password returns the stored password.
func (p *InternetPasswordItem) Password() string { return p.Secret }

// SetPassword replaces the stored password.
func (p *InternetPasswordItem) SetPassword(password string) { p.Secret = password }

// Identifier returns the resolved identifier.
func (p *InternetPasswordItem) Identifier() string { return p.identifier }

// SetIdentifier replaces the identifier, falling back to the description.
func (p *InternetPasswordItem) SetIdentifier(id string) bool {
	resolved := ResolveIdentifier(id, p.Description)
	if resolved == "" {
		return false
	}
	p.identifier = resolved
	return true
}

// Key implements Item.
func (p *InternetPasswordItem) Key() map[string]string {
	return map[string]string{
		ClassKey:       string(KindInternetPassword),
		IdentifierKey:  p.identifier,
		AccountNameKey: p.AccountName,
		WebsiteKey:     canonicalWebsite(p.Website),
	}
}

// Value implements Item.
func (p *InternetPasswordItem) Value() map[string]string { return p.Base.value() }

// Equal implements Item.
func (p *InternetPasswordItem) Equal(other Item) bool {
	o, ok := other.(*InternetPasswordItem)
	if !ok || p == nil || o == nil {
		return ok && p == nil && o == nil
	}
	return equalPassword(p.Base, p.identifier, o.Base, o.identifier) &&
		p.AccountName == o.AccountName &&
		canonicalWebsite(p.Website) == canonicalWebsite(o.Website)
}

// NormalizeWebsite parses raw into its canonical form: https is assumed when
// no scheme is given, scheme and host are lower-cased, the default port and a
// bare "/" path are dropped.
func NormalizeWebsite(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebsite, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidWebsite, raw)
	}
	canonicalize(u)
	return u, nil
}

func canonicalize(u *url.URL) {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if _, port, err := net.SplitHostPort(u.Host); err == nil {
		if (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
			// trim only the port so IPv6 literals keep their brackets
			u.Host = strings.TrimSuffix(u.Host, ":"+port)
		}
	}
	if u.Path == "/" && u.RawQuery == "" && u.Fragment == "" {
		u.Path = ""
	}
	u.RawPath = ""
}

func canonicalWebsite(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	canonicalize(&c)
	return c.String()
}

// HostWithoutSubdomain returns the host of u with the first label dropped
// when the host has exactly three labels.
func HostWithoutSubdomain(u *url.URL) string {
	if u == nil {
		return ""
	}
	labels := strings.Split(u.Hostname(), ".")
	if len(labels) == 3 {
		labels = labels[1:]
	}
	return strings.Join(labels, ".")
}
