package bloom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertQueryRoundTrip(t *testing.T) {
	r := NewRing(4, 16, 4)
	key := Canonicalize(" Alice@X.com ", "Bob@Y.com", "10.0.0.1")

	assert.False(t, r.Query(key))
	r.Insert(key)
	assert.True(t, r.Query(key))
}

func TestCanonicalizeFoldsWhitespaceAndCase(t *testing.T) {
	a := Canonicalize("Alice@X.com", "Bob@Y.com", "10.0.0.1")
	b := Canonicalize(" alice@x.com ", " bob@y.com", "10.0.0.1")
	assert.Equal(t, a, b)
}

// S6: inserted in buffer i, still present after 3 rotations of a 4-buffer
// ring, gone after the 4th.
func TestAgingAfterNumBufsRotations(t *testing.T) {
	r := NewRing(4, 16, 4)
	key := "triplet-under-test"
	r.Insert(key)

	for i := 0; i < 3; i++ {
		r.Rotate()
		assert.True(t, r.Query(key), "should still be visible after rotation %d", i+1)
	}

	r.Rotate()
	assert.False(t, r.Query(key), "should have aged out after the 4th rotation")
}

func TestMonotonicityBetweenRotations(t *testing.T) {
	r := NewRing(4, 16, 4)
	keys := []string{"a", "b", "c"}
	for _, k := range keys {
		assert.False(t, r.Query(k))
		r.Insert(k)
		assert.True(t, r.Query(k))
	}
	// inserting later keys never un-sets membership of earlier ones.
	for _, k := range keys {
		assert.True(t, r.Query(k))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := NewRing(3, 12, 3)
	r.Insert("persisted-triplet")
	r.Rotate()

	var buf bytes.Buffer
	require.NoError(t, r.Snapshot(&buf))

	loaded, err := LoadSnapshot(&buf, 3, 12, 3)
	require.NoError(t, err)
	assert.True(t, loaded.Query("persisted-triplet"))
	assert.Equal(t, r.head, loaded.head)
}

func TestLoadSnapshotRejectsParameterMismatch(t *testing.T) {
	r := NewRing(3, 12, 3)
	var buf bytes.Buffer
	require.NoError(t, r.Snapshot(&buf))

	_, err := LoadSnapshot(&buf, 4, 12, 3)
	assert.Error(t, err)
}
