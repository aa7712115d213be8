package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	store, err := OpenWithPassword(t.TempDir(), "hunter2")
	require.NoError(t, err)
	defer store.Close()

	content := map[string]string{"private-key": "KEY", "ca-cert": "CA"}
	require.NoError(t, store.Put("secret:abc", content))

	got, err := store.Get("secret:abc")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestGetMissing(t *testing.T) {
	store, err := OpenWithPassword(t.TempDir(), "hunter2")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get("secret:nope")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	store, err := OpenWithPassword(t.TempDir(), "hunter2")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("secret:abc", map[string]string{"k": "v"}))
	require.NoError(t, store.Delete("secret:abc"))

	_, err = store.Get("secret:abc")
	assert.Error(t, err)
}

func TestEncryptedAtRest(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenWithPassword(dir, "hunter2")
	require.NoError(t, err)

	require.NoError(t, store.Put("secret:abc", map[string]string{
		"private-key": "VERY-SECRET-MATERIAL",
	}))
	require.NoError(t, store.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "secrets.db"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "VERY-SECRET-MATERIAL")
}

func TestWrongPassword(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenWithPassword(dir, "hunter2")
	require.NoError(t, err)
	require.NoError(t, store.Put("secret:abc", map[string]string{"k": "v"}))
	require.NoError(t, store.Close())

	store, err = OpenWithPassword(dir, "not-hunter2")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get("secret:abc")
	assert.Error(t, err, "material sealed under another key does not open")
}

func TestOpenRejectsBadKey(t *testing.T) {
	_, err := Open(t.TempDir(), []byte("short"))
	assert.Error(t, err)

	_, err = OpenWithPassword(t.TempDir(), "")
	assert.Error(t, err)
}
