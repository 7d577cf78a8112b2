package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndFindVariants(t *testing.T) {
	m := make(Map[int])
	Put(m, "00a7", 1)

	for _, key := range []string{"00a7", "00A7", "a7", "A7"} {
		got, ok := Find(m, key)
		require.True(t, ok, "key %q should resolve", key)
		assert.Equal(t, 1, got)
	}

	_, ok := Find(m, "b7")
	assert.False(t, ok)
}

func TestPutCanonicalOverwritesVariant(t *testing.T) {
	m := make(Map[string])
	Put(m, "007", "padded")
	Put(m, "7", "plain")

	got, ok := Find(m, "7")
	require.True(t, ok)
	assert.Equal(t, "plain", got)
}

func TestPutIgnoresBlankKeys(t *testing.T) {
	m := make(Map[int])
	Put(m, "   ", 1)
	assert.Empty(t, m)
}

func TestFindBlankIdentifier(t *testing.T) {
	m := Map[int]{"1": 1}
	_, ok := Find(m, "  ")
	assert.False(t, ok)
}
