package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/GophKeychain/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T, sealer *Sealer) *LocalStorage {
	t.Helper()
	ls := NewLocalStorage(filepath.Join(t.TempDir(), "keychain", "storage.json"), sealer)
	ls.now = func() time.Time { return time.Unix(1700000000, 0) }
	return ls
}

func record(item models.Item, err error) models.Record {
	if err != nil {
		panic(err)
	}
	rec := models.Project(item)
	rec.Version = 1
	return rec
}

func TestLoad_FileNotExist(t *testing.T) {
	ls := newTestStorage(t, nil)
	require.NoError(t, ls.Load())

	recs, err := ls.List(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Zero(t, ls.Version)
}

func TestLoad_Corrupt(t *testing.T) {
	ls := newTestStorage(t, nil)
	require.NoError(t, os.MkdirAll(filepath.Dir(ls.path), 0o700))
	require.NoError(t, os.WriteFile(ls.path, []byte("{"), 0o600))
	assert.ErrorContains(t, ls.Load(), "decode store")
}

func TestRepositoryOperations(t *testing.T) {
	ctx := context.Background()
	ls := newTestStorage(t, nil)
	pin := record(models.NewPasswordItem("1234", "pin"))
	web := record(models.NewInternetPasswordItem("pw", "alice", "example.com"))

	require.NoError(t, ls.Insert(ctx, "", pin))
	require.NoError(t, ls.Insert(ctx, "", web))
	assert.ErrorIs(t, ls.Insert(ctx, "", pin), models.ErrDuplicateItem)

	ok, err := ls.Exists(ctx, "", pin.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	changed := pin.Clone()
	changed.Value[models.ValueKey] = "4321"
	require.NoError(t, ls.Update(ctx, "", changed))
	got, err := ls.Get(ctx, "", pin.ID())
	require.NoError(t, err)
	assert.Equal(t, "4321", got.Secret())

	// returned records are copies
	got.Value[models.ValueKey] = "tampered"
	again, err := ls.Get(ctx, "", pin.ID())
	require.NoError(t, err)
	assert.Equal(t, "4321", again.Secret())

	webOnly, err := ls.List(ctx, "", []models.Kind{models.KindInternetPassword})
	require.NoError(t, err)
	require.Len(t, webOnly, 1)
	assert.Equal(t, web.ID(), webOnly[0].ID())

	require.NoError(t, ls.Delete(ctx, "", pin.ID()))
	assert.ErrorIs(t, ls.Delete(ctx, "", pin.ID()), models.ErrItemNotFound)
	assert.ErrorIs(t, ls.Update(ctx, "", changed), models.ErrItemNotFound)
	_, err = ls.Get(ctx, "", pin.ID())
	assert.ErrorIs(t, err, models.ErrItemNotFound)

	tombs := ls.Tombstones()
	require.Len(t, tombs, 1)
	assert.Equal(t, pin.ID(), tombs[0].ID())
	assert.Equal(t, int64(1700000000), tombs[0].Version)
	assert.Empty(t, tombs[0].Secret(), "tombstones keep no secret")

	// inserting again revives the tombstone in place
	require.NoError(t, ls.Insert(ctx, "", pin))
	assert.Empty(t, ls.Tombstones())
	all, err := ls.List(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, pin.ID(), all[0].ID(), "insertion order is kept")

	n, err := ls.Clear(ctx, "", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, ls.Tombstones(), 2)
}

func TestSaveAndLoad_Sealed(t *testing.T) {
	ctx := context.Background()
	sealer := testSealer(t)
	ls := newTestStorage(t, sealer)
	pin := record(models.NewPasswordItem("super-secret", "pin"))
	require.NoError(t, ls.Insert(ctx, "", pin))
	ls.Version = 77
	require.NoError(t, ls.Save())

	raw, err := os.ReadFile(ls.path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "super-secret"), "secret must be sealed on disk")
	var onDisk fileFormat
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Len(t, onDisk.Items, 1)
	assert.Equal(t, pin.Key, onDisk.Items[0].Key)
	assert.True(t, onDisk.Items[0].Dirty)

	reloaded := NewLocalStorage(ls.path, sealer)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, int64(77), reloaded.Version)
	got, err := reloaded.Get(ctx, "", pin.ID())
	require.NoError(t, err)
	assert.Equal(t, pin, *got)

	aead, err := NewAEADFromKeyPEM([]byte("some other key"))
	require.NoError(t, err)
	wrongKey := NewLocalStorage(ls.path, NewSealer(aead))
	assert.ErrorContains(t, wrongKey.Load(), "open item")
}

func TestPendingMarkPushedReplace(t *testing.T) {
	ctx := context.Background()
	ls := newTestStorage(t, nil)
	shared := record(models.NewPasswordItem("1", "shared"))
	local := record(models.NewPasswordItem("2", "device", models.WithAccessLevel(models.AccessibleWhenUnlockedThisDeviceOnly)))
	require.NoError(t, ls.Insert(ctx, "", shared))
	require.NoError(t, ls.Insert(ctx, "", local))

	assert.Len(t, ls.Pending(), 2)
	ls.MarkPushed(shared.ID(), shared.Version)
	ls.MarkPushed(local.ID(), 999) // stale version: stays dirty
	pending := ls.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, local.ID(), pending[0].ID())

	remote := record(models.NewPasswordItem("3", "from-server"))
	require.NoError(t, ls.Replace([]models.Record{remote}, 500))
	assert.Equal(t, int64(500), ls.Version)

	all, err := ls.List(ctx, "", nil)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, r := range all {
		ids = append(ids, r.ID())
	}
	assert.ElementsMatch(t, []string{local.ID(), remote.ID()}, ids, "pushed entries are replaced by the server view")
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	ls := newTestStorage(t, nil)
	pin := record(models.NewPasswordItem("1234", "pin"))
	require.NoError(t, ls.Insert(ctx, "", pin))

	ls.Forget(pin.ID()) // live entries are not forgotten
	ok, _ := ls.Exists(ctx, "", pin.ID())
	assert.True(t, ok)

	require.NoError(t, ls.Delete(ctx, "", pin.ID()))
	ls.Forget(pin.ID())
	assert.Empty(t, ls.Tombstones())
}

func TestFailedSaveLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	ls := newTestStorage(t, nil)
	pin := record(models.NewPasswordItem("1234", "pin"))
	require.NoError(t, ls.Insert(ctx, "", pin))

	// a regular file where the store directory should be makes every write fail
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	ls.path = filepath.Join(blocker, "storage.json")

	note := record(models.NewGenericItem("note", "text"))
	assert.Error(t, ls.Insert(ctx, "", note))

	changed := pin.Clone()
	changed.Value[models.ValueKey] = "9999"
	assert.Error(t, ls.Update(ctx, "", changed))

	assert.Error(t, ls.Delete(ctx, "", pin.ID()))

	n, err := ls.Clear(ctx, "", nil)
	assert.Error(t, err)
	assert.Zero(t, n)

	assert.Error(t, ls.Replace(nil, 42))
	assert.Zero(t, ls.Version)

	recs, err := ls.List(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1234", recs[0].Secret())
	assert.Empty(t, ls.Tombstones())
	assert.Len(t, ls.Pending(), 1)
}
