package cassandra

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSnapshot(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		maxSize   int
		wantParts int
	}{
		{name: "empty snapshot is one part", size: 0, maxSize: 100, wantParts: 1},
		{name: "under the limit", size: 99, maxSize: 100, wantParts: 1},
		{name: "exactly the limit", size: 100, maxSize: 100, wantParts: 1},
		{name: "one byte over", size: 101, maxSize: 100, wantParts: 2},
		{name: "two full parts", size: 200, maxSize: 100, wantParts: 2},
		{name: "ten parts", size: 901, maxSize: 100, wantParts: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, tt.size)
			for i := range data {
				data[i] = byte(i)
			}

			parts := splitSnapshot(data, tt.maxSize)
			require.Len(t, parts, tt.wantParts)

			for i, part := range parts {
				if i < len(parts)-1 {
					assert.Len(t, part, tt.maxSize, "non-final part %d must be full", i)
				} else {
					assert.LessOrEqual(t, len(part), tt.maxSize)
				}
			}

			// Concatenating parts in order must reproduce the snapshot.
			assert.Equal(t, data, bytes.Join(parts, nil))
		})
	}
}

func TestSplitSnapshotSharesBacking(t *testing.T) {
	data := []byte("abcdef")
	parts := splitSnapshot(data, 2)
	require.Len(t, parts, 3)
	assert.Equal(t, []byte("ab"), parts[0])
	assert.Equal(t, []byte("cd"), parts[1])
	assert.Equal(t, []byte("ef"), parts[2])
}
