// Package storage is the client side of the keychain: an encrypted,
// file-backed item store that can stand in for the server repository,
// the mTLS helpers used to reach the server, the synchronisation loop and
// the interactive prompts of the REPL.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/atinyakov/GophKeychain/internal/models"
)

// DefaultFile is the store used when no path is configured.
const DefaultFile = "storage.json"

// LocalStorage keeps an ordered list of records in a JSON file. It
// satisfies service.KeychainRepository for a single owner; the owner
// argument of its methods is ignored. Deletions leave tombstones until
// Forget is called after they reach the server.
type LocalStorage struct {
	path   string
	sealer *Sealer
	now    func() time.Time

	mu      sync.Mutex
	entries []Entry
	// Version is the time of the last successful sync.
	Version int64
}

// NewLocalStorage returns an empty store backed by path. A nil sealer keeps
// secrets in plain text.
func NewLocalStorage(path string, sealer *Sealer) *LocalStorage {
	if path == "" {
		path = DefaultFile
	}
	return &LocalStorage{path: path, sealer: sealer, now: time.Now}
}

// Load replaces the in-memory state with the file contents. A missing file
// yields an empty store.
func (ls *LocalStorage) Load() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	data, err := os.ReadFile(ls.path)
	if errors.Is(err, os.ErrNotExist) {
		ls.entries = nil
		ls.Version = 0
		return nil
	}
	if err != nil {
		return fmt.Errorf("read store: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode store: %w", err)
	}
	if ls.sealer != nil {
		for i, e := range f.Items {
			if e.Deleted {
				continue
			}
			opened, err := ls.sealer.Open(e.Record)
			if err != nil {
				return fmt.Errorf("open item %s: %w", e.ID(), err)
			}
			f.Items[i].Record = opened
		}
	}
	ls.entries = f.Items
	ls.Version = f.Version
	return nil
}

// Save writes the store to its file, replacing it atomically.
func (ls *LocalStorage) Save() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.save()
}

func (ls *LocalStorage) save() error {
	f := fileFormat{Items: make([]Entry, 0, len(ls.entries)), Version: ls.Version}
	for _, e := range ls.entries {
		if ls.sealer != nil && !e.Deleted {
			sealed, err := ls.sealer.Seal(e.Record)
			if err != nil {
				return err
			}
			e.Record = sealed
		}
		f.Items = append(f.Items, e)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	if dir := filepath.Dir(ls.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	tmp := ls.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, ls.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

// find returns the index of the entry with id, tombstones included.
func (ls *LocalStorage) find(id string) int {
	return slices.IndexFunc(ls.entries, func(e Entry) bool { return e.ID() == id })
}

// Exists reports whether a live record with id is stored.
func (ls *LocalStorage) Exists(_ context.Context, _ string, id string) (bool, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	i := ls.find(id)
	return i >= 0 && !ls.entries[i].Deleted, nil
}

// Insert appends rec, or revives a tombstone with the same id in place.
func (ls *LocalStorage) Insert(_ context.Context, _ string, rec models.Record) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	prev := slices.Clone(ls.entries)
	entry := Entry{Record: rec.Clone(), Dirty: true}
	switch i := ls.find(rec.ID()); {
	case i < 0:
		ls.entries = append(ls.entries, entry)
	case ls.entries[i].Deleted:
		ls.entries[i] = entry
	default:
		return models.ErrDuplicateItem
	}
	return ls.commit(prev)
}

// Update replaces a live record.
func (ls *LocalStorage) Update(_ context.Context, _ string, rec models.Record) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	i := ls.find(rec.ID())
	if i < 0 || ls.entries[i].Deleted {
		return models.ErrItemNotFound
	}
	prev := slices.Clone(ls.entries)
	ls.entries[i] = Entry{Record: rec.Clone(), Dirty: true}
	return ls.commit(prev)
}

// Get returns a copy of the live record with id.
func (ls *LocalStorage) Get(_ context.Context, _ string, id string) (*models.Record, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	i := ls.find(id)
	if i < 0 || ls.entries[i].Deleted {
		return nil, models.ErrItemNotFound
	}
	rec := ls.entries[i].Clone()
	return &rec, nil
}

// Delete turns the live record with id into a tombstone.
func (ls *LocalStorage) Delete(_ context.Context, _ string, id string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	i := ls.find(id)
	if i < 0 || ls.entries[i].Deleted {
		return models.ErrItemNotFound
	}
	prev := slices.Clone(ls.entries)
	ls.bury(i)
	return ls.commit(prev)
}

// List returns the live records of the given kinds in insertion order.
func (ls *LocalStorage) List(_ context.Context, _ string, kinds []models.Kind) ([]models.Record, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	var recs []models.Record
	for _, e := range ls.entries {
		if !e.Deleted && matchKind(e.Kind(), kinds) {
			recs = append(recs, e.Clone())
		}
	}
	return recs, nil
}

// Clear turns every live record of the given kinds into a tombstone.
func (ls *LocalStorage) Clear(_ context.Context, _ string, kinds []models.Kind) (int64, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	prev := slices.Clone(ls.entries)
	var n int64
	for i, e := range ls.entries {
		if !e.Deleted && matchKind(e.Kind(), kinds) {
			ls.bury(i)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	if err := ls.commit(prev); err != nil {
		return 0, err
	}
	return n, nil
}

// Tombstones returns the deletions not yet acknowledged by the server.
func (ls *LocalStorage) Tombstones() []Entry {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.collect(func(e Entry) bool { return e.Deleted })
}

// Pending returns the live records changed since the last push.
func (ls *LocalStorage) Pending() []Entry {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.collect(func(e Entry) bool { return !e.Deleted && e.Dirty })
}

// Forget drops the tombstone with id.
func (ls *LocalStorage) Forget(id string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if i := ls.find(id); i >= 0 && ls.entries[i].Deleted {
		ls.entries = slices.Delete(ls.entries, i, i+1)
	}
}

// MarkPushed clears the dirty flag of id if its version is still version.
func (ls *LocalStorage) MarkPushed(id string, version int64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if i := ls.find(id); i >= 0 && ls.entries[i].Version == version {
		ls.entries[i].Dirty = false
	}
}

// Replace installs the server's view of the keychain. Entries that stay
// on this device, and entries changed locally while the sync ran, are
// kept; everything else is replaced by remote. version becomes the new
// sync version. The store is saved.
func (ls *LocalStorage) Replace(remote []models.Record, version int64) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	var kept []Entry
	seen := make(map[string]bool)
	for _, e := range ls.entries {
		if e.local() || e.Dirty || e.Deleted {
			kept = append(kept, e)
			seen[e.ID()] = true
		}
	}
	for _, rec := range remote {
		if !seen[rec.ID()] {
			kept = append(kept, Entry{Record: rec.Clone()})
		}
	}
	prev, prevVersion := ls.entries, ls.Version
	ls.entries = kept
	ls.Version = version
	if err := ls.commit(prev); err != nil {
		ls.Version = prevVersion
		return err
	}
	return nil
}

// commit saves the store and, when the write fails, puts prev back so that
// memory keeps matching the file.
func (ls *LocalStorage) commit(prev []Entry) error {
	if err := ls.save(); err != nil {
		ls.entries = prev
		return err
	}
	return nil
}

func (ls *LocalStorage) bury(i int) {
	ls.entries[i].Deleted = true
	ls.entries[i].Dirty = false
	ls.entries[i].Value = nil
	ls.entries[i].Version = ls.now().Unix()
}

func (ls *LocalStorage) collect(keep func(Entry) bool) []Entry {
	var out []Entry
	for _, e := range ls.entries {
		if keep(e) {
			e.Record = e.Clone()
			out = append(out, e)
		}
	}
	return out
}

func matchKind(kind models.Kind, kinds []models.Kind) bool {
	return len(kinds) == 0 || slices.Contains(kinds, kind)
}
