package blob

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gallery/core"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "blobs.db"), "http://localhost:8000/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	key, err := store.Put(ctx, "thumbnails", "../My Project.png", "image/png", strings.NewReader("png-data"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "thumbnails/"))
	assert.True(t, strings.HasSuffix(key, "-My_Project.png"))

	blob, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "image/png", blob.ContentType)
	assert.Equal(t, "png-data", string(blob.Data))

	url := store.URL(key)
	assert.Equal(t, "http://localhost:8000/v1/files/"+key, url)
	got, ok := store.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, key, got)

	_, ok = store.KeyFromURL("https://elsewhere.test/v1/files/" + key)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.Equal(t, core.ErrBlobNotFound, err)

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, key))
}

func TestStore_Put_sanitizesFolder(t *testing.T) {
	store := openStore(t)

	key, err := store.Put(context.Background(), "../../etc", "", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "etc/"), key)
	assert.True(t, strings.HasSuffix(key, "-file"), key)
}
