package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"beatframe/models"
)

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := Fingerprint([]string{"nature", "sunset", "ocean"}, false)
	b := Fingerprint([]string{"ocean", "nature", "sunset"}, false)
	assert.Equal(t, a, b)
}

func TestFingerprint_NsfwDiscriminator(t *testing.T) {
	safe := Fingerprint([]string{"nature"}, false)
	explicit := Fingerprint([]string{"nature"}, true)
	assert.NotEqual(t, safe, explicit)
}

func TestFingerprint_NormalisesTags(t *testing.T) {
	a := Fingerprint([]string{" Nature ", "SUNSET"}, false)
	b := Fingerprint([]string{"sunset", "nature"}, false)
	assert.Equal(t, a, b)
}

func TestStore_PutReplacesWholesale(t *testing.T) {
	store := NewStore()
	key := Fingerprint([]string{"nature"}, false)

	store.Put(key, []models.MediaItem{{ID: "old"}})
	store.Put(key, []models.MediaItem{{ID: "new"}})

	batch, ok := store.Get(key)
	assert.True(t, ok)
	assert.Len(t, batch, 1)
	assert.Equal(t, "new", batch[0].ID)
}

func TestStore_PutCopiesBatch(t *testing.T) {
	store := NewStore()
	key := Fingerprint([]string{"nature"}, false)

	original := []models.MediaItem{{ID: "a"}}
	store.Put(key, original)
	original[0].ID = "mutated"

	batch, _ := store.Get(key)
	assert.Equal(t, "a", batch[0].ID)
}

func TestStore_Clear(t *testing.T) {
	store := NewStore()
	key := Fingerprint([]string{"nature"}, false)
	store.Put(key, []models.MediaItem{{ID: "a"}})

	store.Clear()

	_, ok := store.Get(key)
	assert.False(t, ok)
}
