package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAccessLevel(t *testing.T) {
	tests := []struct {
		in   string
		want AccessLevel
	}{
		{"afterFirstUnlock", AccessibleAfterFirstUnlock},
		{"cku", AccessibleAfterFirstUnlockThisDeviceOnly},
		{"always", AccessibleAlways},
		{"akpu", AccessibleWhenPasscodeSetThisDeviceOnly},
		{"alwaysThisDeviceOnly", AccessibleAlwaysThisDeviceOnly},
		{"ak", AccessibleWhenUnlocked},
		{"whenUnlockedThisDeviceOnly", AccessibleWhenUnlockedThisDeviceOnly},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAccessLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseAccessLevel("sometimes")
	assert.ErrorIs(t, err, ErrUnknownAccessLevel)
}

func TestAccessLevel_NamesAndNative(t *testing.T) {
	for lvl := AccessibleAfterFirstUnlock; lvl <= AccessibleWhenUnlockedThisDeviceOnly; lvl++ {
		require.True(t, lvl.Valid())

		byName, err := ParseAccessLevel(lvl.String())
		require.NoError(t, err)
		assert.Equal(t, lvl, byName)

		byNative, err := ParseAccessLevel(lvl.Native())
		require.NoError(t, err)
		assert.Equal(t, lvl, byNative)
	}

	assert.False(t, AccessLevel(7).Valid())
	assert.Equal(t, "AccessLevel(7)", AccessLevel(7).String())
	assert.Empty(t, AccessLevel(-1).Native())
}

func TestAccessLevel_ThisDeviceOnly(t *testing.T) {
	assert.True(t, AccessibleWhenUnlockedThisDeviceOnly.ThisDeviceOnly())
	assert.True(t, AccessibleWhenPasscodeSetThisDeviceOnly.ThisDeviceOnly())
	assert.False(t, AccessibleWhenUnlocked.ThisDeviceOnly())
	assert.False(t, AccessibleAlways.ThisDeviceOnly())
}

func TestAccessLevel_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Level AccessLevel `json:"level"`
	}{AccessibleAlways})
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":"always"}`, string(b))

	var out struct {
		Level AccessLevel `json:"level"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"level":"aku"}`), &out))
	assert.Equal(t, AccessibleWhenUnlockedThisDeviceOnly, out.Level)

	assert.Error(t, json.Unmarshal([]byte(`{"level":"never"}`), &out))

	_, err = json.Marshal(struct{ L AccessLevel }{AccessLevel(42)})
	assert.Error(t, err)
}
