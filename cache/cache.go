package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"beatframe/models"
)

// A session only ever touches a couple of fingerprints so this is mostly
// headroom against a UI that churns through tag combinations.
const defaultCapacity = 32

// Fingerprint derives the cache key for a (tags, nsfw) pair. Tags are
// sorted before hashing so the key is invariant under tag reordering.
func Fingerprint(tags []string, allowNsfw bool) string {
	normalized := models.NormalizeTags(tags)
	sort.Strings(normalized)
	discriminator := "sfw"
	if allowNsfw {
		discriminator = "nsfw"
	}
	return fmt.Sprintf("batch:%s:%d", discriminator, xxhash.Sum64String(strings.Join(normalized, ",")))
}

// Store holds previously fetched batches keyed by fingerprint. Entries are
// replaced wholesale on refetch, never mutated in place.
type Store struct {
	batches *lru.Cache[string, []models.MediaItem]
}

func NewStore() *Store {
	batches, _ := lru.New[string, []models.MediaItem](defaultCapacity)
	return &Store{batches: batches}
}

func (s *Store) Get(key string) ([]models.MediaItem, bool) {
	return s.batches.Get(key)
}

func (s *Store) Put(key string, items []models.MediaItem) {
	// Copy so a caller holding the original slice can't mutate the entry
	batch := make([]models.MediaItem, len(items))
	copy(batch, items)
	s.batches.Add(key, batch)
}

func (s *Store) Clear() {
	s.batches.Purge()
}
