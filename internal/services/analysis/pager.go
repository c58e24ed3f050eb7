package analysis

import (
	"errors"
	"fmt"
)

// ErrInvalidChunkIndex is returned when a requested chunk index is outside
// the document's chunk range. Callers get the valid range in the wrapped
// message; indexes are never clamped.
var ErrInvalidChunkIndex = errors.New("invalid chunk index")

// ChunkCount returns how many fixed-size chunks a text splits into:
// ceil(len/size). Empty text has zero chunks. size must be positive;
// a non-positive size yields zero.
func ChunkCount(text string, size int) int {
	if size <= 0 || len(text) == 0 {
		return 0
	}
	return (len(text) + size - 1) / size
}

// Chunk returns the chunk at index using byte-offset slicing. The final
// chunk may be short. Concatenating all chunks in order reconstructs the
// text exactly.
func Chunk(text string, size, index int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("chunk size must be positive, got %d", size)
	}

	count := ChunkCount(text, size)
	if index < 0 || index >= count {
		return "", fmt.Errorf("%w: %d (document has %d chunks)", ErrInvalidChunkIndex, index, count)
	}

	start := index * size
	end := start + size
	if end > len(text) {
		end = len(text)
	}
	return text[start:end], nil
}
