package storage

import "github.com/atinyakov/GophKeychain/internal/models"

// Entry is one record in the local store.
type Entry struct {
	models.Record
	// Deleted marks a tombstone kept until the deletion reaches the server.
	Deleted bool `json:"deleted,omitempty"`
	// Dirty marks local changes that have not been pushed yet.
	Dirty bool `json:"dirty,omitempty"`
}

// local reports whether the entry must never leave this device.
func (e Entry) local() bool {
	return e.AccessLevel.ThisDeviceOnly()
}

type fileFormat struct {
	Items   []Entry `json:"items"`
	Version int64   `json:"version"`
}
