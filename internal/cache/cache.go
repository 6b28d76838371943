// Package cache implements the content-addressed artifact cache mapping a
// fingerprint of (language, normalized text) to previously synthesized audio.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/book-expert/logger"

	"github.com/book-expert/document-speech-service/internal/core"
)

// lockStripes is the size of the fixed lock pool serializing per-fingerprint
// access. A fixed pool keeps memory constant no matter how many distinct
// fingerprints pass through; fingerprints sharing a stripe are serialized
// together, which is harmless.
const lockStripes = 64

// entryKey builds the object-store key for one cached artifact. The producing
// engine kind and mime are part of the key so a hit can reconstruct the full
// artifact without a metadata sidecar.
const entryKeyFormat = "%s.%s.%s"

// candidateSuffixes enumerates every (kind, mime) pair an entry may have been
// stored under, in deterministic lookup order.
var candidateSuffixes = []struct {
	kind core.EngineKind
	mime core.MimeFormat
}{
	{core.EngineNetwork, core.MimeMP3},
	{core.EngineLocal, core.MimeWAV},
	{core.EngineLocal, core.MimeMP3},
	{core.EngineNetwork, core.MimeWAV},
}

// Cache is a fingerprint-addressed artifact store. Get and Put on the same
// fingerprint are serialized so concurrent requests for identical text never
// observe a half-written entry or race to write conflicting ones.
type Cache struct {
	store       core.ObjectStore
	minMP3Bytes int64
	minWAVBytes int64
	log         *logger.Logger

	locks [lockStripes]sync.Mutex
}

// New creates a cache over the given backing store with the viability floors
// used to revalidate entries on read.
func New(store core.ObjectStore, minMP3Bytes, minWAVBytes int64, log *logger.Logger) *Cache {
	return &Cache{
		store:       store,
		minMP3Bytes: minMP3Bytes,
		minWAVBytes: minWAVBytes,
		log:         log,
		locks:       [lockStripes]sync.Mutex{},
	}
}

// Fingerprint computes the deterministic cache key for a normalized text in a
// given language. The language is part of the hashed input so identical text
// in different languages never collides.
func Fingerprint(language core.Language, text string) string {
	hash := sha256.New()
	hash.Write([]byte(language))
	hash.Write([]byte{0})
	hash.Write([]byte(text))

	return hex.EncodeToString(hash.Sum(nil))
}

// Get returns a copy of the cached artifact for the fingerprint, revalidating
// its viability first. A corrupt entry is removed and reported as a miss.
func (c *Cache) Get(ctx context.Context, fingerprint string) (*core.AudioArtifact, bool) {
	lock := c.lockFor(fingerprint)
	lock.Lock()
	defer lock.Unlock()

	for _, suffix := range candidateSuffixes {
		key := fmt.Sprintf(entryKeyFormat, fingerprint, suffix.kind, suffix.mime)

		data, err := c.store.Download(ctx, key)
		if err != nil {
			continue
		}

		if int64(len(data)) < c.viabilityFloor(suffix.mime) {
			c.log.Warn("Removing corrupt cache entry '%s' (%d bytes)", key, len(data))

			deleteErr := c.store.Delete(ctx, key)
			if deleteErr != nil {
				c.log.Warn("Failed to remove corrupt cache entry '%s': %v", key, deleteErr)
			}

			continue
		}

		return &core.AudioArtifact{
			Data:         data,
			Mime:         suffix.mime,
			SizeBytes:    int64(len(data)),
			ProducedBy:   suffix.kind,
			UsedFallback: false,
		}, true
	}

	return nil, false
}

// Put stores an artifact under the fingerprint. Re-caching an identical
// fingerprint overwrites the existing entry rather than erroring.
func (c *Cache) Put(ctx context.Context, fingerprint string, artifact *core.AudioArtifact) error {
	lock := c.lockFor(fingerprint)
	lock.Lock()
	defer lock.Unlock()

	key := fmt.Sprintf(entryKeyFormat, fingerprint, artifact.ProducedBy, artifact.Mime)

	err := c.store.Upload(ctx, key, artifact.Data)
	if err != nil {
		return fmt.Errorf("failed to cache artifact '%s': %w", key, err)
	}

	return nil
}

// viabilityFloor returns the minimum byte size below which audio of the given
// format is treated as corrupt.
func (c *Cache) viabilityFloor(mime core.MimeFormat) int64 {
	if mime == core.MimeWAV {
		return c.minWAVBytes
	}

	return c.minMP3Bytes
}

// lockFor returns the stripe mutex serializing access to one fingerprint.
func (c *Cache) lockFor(fingerprint string) *sync.Mutex {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(fingerprint))

	return &c.locks[hasher.Sum32()%lockStripes]
}
