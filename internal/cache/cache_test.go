// Package cache_test tests the content-addressed artifact cache.
package cache_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/document-speech-service/internal/cache"
	"github.com/book-expert/document-speech-service/internal/core"
)

const (
	testMinMP3Bytes = 16
	testMinWAVBytes = 32
)

var errObjectMissing = errors.New("object not found")

// memoryStore is an in-memory core.ObjectStore for tests.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		mu:      sync.Mutex{},
		objects: make(map[string][]byte),
	}
}

func (m *memoryStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, exists := m.objects[key]
	if !exists {
		return nil, errObjectMissing
	}

	return data, nil
}

func (m *memoryStore) Upload(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = data

	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)

	return nil
}

func newTestCache(t *testing.T) (*cache.Cache, *memoryStore) {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	store := newMemoryStore()

	return cache.New(store, testMinMP3Bytes, testMinWAVBytes, log), store
}

func viableArtifact(kind core.EngineKind, mime core.MimeFormat) *core.AudioArtifact {
	data := bytes.Repeat([]byte{0xAB}, 64)

	return &core.AudioArtifact{
		Data:         data,
		Mime:         mime,
		SizeBytes:    int64(len(data)),
		ProducedBy:   kind,
		UsedFallback: true,
	}
}

func TestFingerprintDependsOnLanguageAndText(t *testing.T) {
	t.Parallel()

	english := cache.Fingerprint(core.LanguageEnglish, "hello world")
	urdu := cache.Fingerprint(core.LanguageUrdu, "hello world")
	other := cache.Fingerprint(core.LanguageEnglish, "hello there")

	assert.NotEqual(t, english, urdu)
	assert.NotEqual(t, english, other)
	assert.Equal(t, english, cache.Fingerprint(core.LanguageEnglish, "hello world"))
	assert.Len(t, english, 64)
}

func TestGetMissesOnEmptyCache(t *testing.T) {
	t.Parallel()

	artifactCache, _ := newTestCache(t)

	_, hit := artifactCache.Get(context.Background(), cache.Fingerprint(core.LanguageEnglish, "anything"))

	assert.False(t, hit)
}

func TestPutThenGetRoundTrip(t *testing.T) {
	t.Parallel()

	artifactCache, _ := newTestCache(t)
	fingerprint := cache.Fingerprint(core.LanguageEnglish, "round trip")
	stored := viableArtifact(core.EngineNetwork, core.MimeMP3)

	require.NoError(t, artifactCache.Put(context.Background(), fingerprint, stored))

	retrieved, hit := artifactCache.Get(context.Background(), fingerprint)
	require.True(t, hit)

	assert.Equal(t, stored.Data, retrieved.Data)
	assert.Equal(t, core.MimeMP3, retrieved.Mime)
	assert.Equal(t, core.EngineNetwork, retrieved.ProducedBy)
	assert.Equal(t, stored.SizeBytes, retrieved.SizeBytes)
	// Cache hits never report fallback regardless of how the entry was made.
	assert.False(t, retrieved.UsedFallback)
}

func TestGetRecoversLocalWavEntry(t *testing.T) {
	t.Parallel()

	artifactCache, _ := newTestCache(t)
	fingerprint := cache.Fingerprint(core.LanguageUrdu, "local entry")

	require.NoError(t, artifactCache.Put(context.Background(), fingerprint,
		viableArtifact(core.EngineLocal, core.MimeWAV)))

	retrieved, hit := artifactCache.Get(context.Background(), fingerprint)
	require.True(t, hit)

	assert.Equal(t, core.MimeWAV, retrieved.Mime)
	assert.Equal(t, core.EngineLocal, retrieved.ProducedBy)
}

func TestPutIsIdempotent(t *testing.T) {
	t.Parallel()

	artifactCache, _ := newTestCache(t)
	fingerprint := cache.Fingerprint(core.LanguageEnglish, "idempotent")
	artifact := viableArtifact(core.EngineNetwork, core.MimeMP3)

	require.NoError(t, artifactCache.Put(context.Background(), fingerprint, artifact))
	require.NoError(t, artifactCache.Put(context.Background(), fingerprint, artifact))

	retrieved, hit := artifactCache.Get(context.Background(), fingerprint)
	require.True(t, hit)
	assert.Equal(t, artifact.Data, retrieved.Data)
}

func TestGetRemovesCorruptEntry(t *testing.T) {
	t.Parallel()

	artifactCache, store := newTestCache(t)
	fingerprint := cache.Fingerprint(core.LanguageEnglish, "corrupt")

	// Plant an undersized entry directly in the backing store.
	key := fingerprint + ".network.mp3"
	require.NoError(t, store.Upload(context.Background(), key, []byte{0x01, 0x02}))

	_, hit := artifactCache.Get(context.Background(), fingerprint)
	assert.False(t, hit)

	_, err := store.Download(context.Background(), key)
	require.ErrorIs(t, err, errObjectMissing)
}

func TestConcurrentPutAndGetStayConsistent(t *testing.T) {
	t.Parallel()

	artifactCache, _ := newTestCache(t)

	const workers = 16

	var group sync.WaitGroup

	// Hammer a spread of fingerprints so stripe sharing is exercised too;
	// every Get must see either a miss or a complete viable artifact.
	for i := range workers {
		group.Add(1)

		go func(worker int) {
			defer group.Done()

			fingerprint := cache.Fingerprint(core.LanguageEnglish, string(rune('a'+worker%4)))
			artifact := viableArtifact(core.EngineNetwork, core.MimeMP3)

			for range 50 {
				_ = artifactCache.Put(context.Background(), fingerprint, artifact)

				retrieved, hit := artifactCache.Get(context.Background(), fingerprint)
				if hit {
					assert.Equal(t, artifact.Data, retrieved.Data)
				}
			}
		}(i)
	}

	group.Wait()
}

func TestGetSkipsCorruptEntryAndFindsViableOne(t *testing.T) {
	t.Parallel()

	artifactCache, store := newTestCache(t)
	fingerprint := cache.Fingerprint(core.LanguageEnglish, "mixed entries")

	require.NoError(t, store.Upload(context.Background(),
		fingerprint+".network.mp3", []byte{0x01}))
	require.NoError(t, artifactCache.Put(context.Background(), fingerprint,
		viableArtifact(core.EngineLocal, core.MimeWAV)))

	retrieved, hit := artifactCache.Get(context.Background(), fingerprint)
	require.True(t, hit)
	assert.Equal(t, core.EngineLocal, retrieved.ProducedBy)
}
