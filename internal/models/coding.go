package models

// KeyPrefix namespaces every key an item projects into a storage record.
const KeyPrefix = "keychainItem_"

// Flat record keys produced by Item.Key and Item.Value.
const (
	DescriptionKey     = KeyPrefix + "description"
	AccessLevelKey     = KeyPrefix + "accessLevel"
	IdentifierKey      = KeyPrefix + "id"
	AccountNameKey     = KeyPrefix + "accountName"
	WebsiteKey         = KeyPrefix + "websiteUrl"
	ClassKey           = KeyPrefix + "class"
	ValueKey           = KeyPrefix + "value"
	ApplicationNameKey = KeyPrefix + "applicationName"
)
