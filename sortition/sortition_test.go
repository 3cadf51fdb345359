// +build unit

package sortition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawDeterministic(t *testing.T) {
	pool := []string{"claude", "gpt4", "gemini", "llama", "mistral", "qwen"}

	first, err := Draw(7, pool, 3, true)
	require.NoError(t, err)
	require.Len(t, first, 3)

	for i := 0; i < 10; i++ {
		again, err := Draw(7, pool, 3, true)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDrawSeedSensitivity(t *testing.T) {
	pool := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	divergence := false
	base, err := Draw(1, pool, 4, true)
	require.NoError(t, err)
	for seed := uint64(2); seed < 16; seed++ {
		other, err := Draw(seed, pool, 4, true)
		require.NoError(t, err)
		if !assert.ObjectsAreEqual(base, other) {
			divergence = true
		}
	}
	assert.True(t, divergence, "every seed produced an identical committee")
}

func TestDrawWithoutReplacement(t *testing.T) {
	pool := []string{"a", "b", "c", "d", "e"}

	selected, err := Draw(42, pool, 5, true)
	require.NoError(t, err)
	require.Len(t, selected, 5)

	seen := map[string]struct{}{}
	for _, id := range selected {
		_, dup := seen[id]
		assert.False(t, dup, "agent %s drawn twice", id)
		seen[id] = struct{}{}
	}
}

func TestDrawSkipsDuplicateIDsWhenDistinct(t *testing.T) {
	pool := []string{"a", "a", "a", "b", "c"}

	selected, err := Draw(99, pool, 3, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, selected)
}

func TestDrawPoolExhaustion(t *testing.T) {
	pool := []string{"a", "a", "b"}

	_, err := Draw(3, pool, 3, true)
	assert.Error(t, err)
}

func TestDrawInsufficientPool(t *testing.T) {
	_, err := Draw(1, []string{"a", "b"}, 3, false)
	assert.Error(t, err)

	_, err = Draw(1, []string{"a", "b"}, 0, false)
	assert.Error(t, err)
}
