// Package objectstore_test tests the directory-backed object store.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/document-speech-service/internal/objectstore"
)

func TestFSStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := objectstore.NewFSStore(t.TempDir())
	require.NoError(t, err)

	payload := []byte("artifact bytes")

	require.NoError(t, store.Upload(context.Background(), "abc123.network.mp3", payload))

	data, err := store.Download(context.Background(), "abc123.network.mp3")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestFSStoreUploadOverwrites(t *testing.T) {
	t.Parallel()

	store, err := objectstore.NewFSStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Upload(context.Background(), "key", []byte("first")))
	require.NoError(t, store.Upload(context.Background(), "key", []byte("second")))

	data, err := store.Download(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestFSStoreDownloadMissingKeyFails(t *testing.T) {
	t.Parallel()

	store, err := objectstore.NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "absent")
	require.Error(t, err)
}

func TestFSStoreDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	store, err := objectstore.NewFSStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Upload(context.Background(), "key", []byte("data")))
	require.NoError(t, store.Delete(context.Background(), "key"))
	require.NoError(t, store.Delete(context.Background(), "key"))

	_, err = store.Download(context.Background(), "key")
	require.Error(t, err)
}

func TestFSStoreRejectsUnsafeKeys(t *testing.T) {
	t.Parallel()

	store, err := objectstore.NewFSStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/b", "a\\b"} {
		_, downloadErr := store.Download(context.Background(), key)
		assert.Error(t, downloadErr, "key %q", key)

		uploadErr := store.Upload(context.Background(), key, []byte("x"))
		assert.Error(t, uploadErr, "key %q", key)
	}
}

func TestFSStoreRejectsEmptyDirectory(t *testing.T) {
	t.Parallel()

	_, err := objectstore.NewFSStore("")
	require.ErrorIs(t, err, objectstore.ErrDirEmpty)
}
