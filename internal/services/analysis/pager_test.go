package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkCount(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want int
	}{
		{"empty text", "", 100, 0},
		{"exact fit", strings.Repeat("a", 100), 100, 1},
		{"one over", strings.Repeat("a", 101), 100, 2},
		{"one under", strings.Repeat("a", 99), 100, 1},
		{"multiple", strings.Repeat("a", 250), 100, 3},
		{"single char", "a", 100, 1},
		{"zero size", "abc", 0, 0},
		{"negative size", "abc", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChunkCount(tt.text, tt.size))
		})
	}
}

func TestChunk(t *testing.T) {
	text := "aaaabbbbcc" // 10 bytes, size 4 -> "aaaa", "bbbb", "cc"

	first, err := Chunk(text, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", first)

	second, err := Chunk(text, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, "bbbb", second)

	last, err := Chunk(text, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, "cc", last)
}

func TestChunk_Reconstruction(t *testing.T) {
	text := strings.Repeat("the quick brown fox ", 50)
	size := 33

	var rebuilt strings.Builder
	for i := 0; i < ChunkCount(text, size); i++ {
		chunk, err := Chunk(text, size, i)
		require.NoError(t, err)
		rebuilt.WriteString(chunk)
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunk_DefaultSizeTranscript(t *testing.T) {
	// A 250k-character transcript at the default 80k chunk size
	text := strings.Repeat("x", 250000)
	size := 80000

	require.Equal(t, 4, ChunkCount(text, size))

	last, err := Chunk(text, size, 3)
	require.NoError(t, err)
	assert.Len(t, last, 10000)

	_, err = Chunk(text, size, 4)
	assert.ErrorIs(t, err, ErrInvalidChunkIndex)
}

func TestChunk_InvalidIndex(t *testing.T) {
	text := strings.Repeat("a", 10)

	_, err := Chunk(text, 4, -1)
	assert.ErrorIs(t, err, ErrInvalidChunkIndex)

	_, err = Chunk(text, 4, 3)
	assert.ErrorIs(t, err, ErrInvalidChunkIndex)

	// Empty text has no valid index at all
	_, err = Chunk("", 4, 0)
	assert.ErrorIs(t, err, ErrInvalidChunkIndex)
}

func TestChunk_InvalidSize(t *testing.T) {
	_, err := Chunk("abc", 0, 0)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidChunkIndex)
}
