package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFileChecksum(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.zip")
	second := filepath.Join(dir, "b.zip")
	require.NoError(t, os.WriteFile(first, []byte("same bytes"), 0644))
	require.NoError(t, os.WriteFile(second, []byte("same bytes"), 0644))

	t.Run("Expect: identical content yields identical checksums", func(t *testing.T) {
		sumA, err := GetFileChecksum(first)
		require.NoError(t, err)
		sumB, err := GetFileChecksum(second)
		require.NoError(t, err)

		assert.Equal(t, sumA, sumB)
		assert.Len(t, sumA, 16)
	})

	t.Run("Expect: file checksum matches reader checksum", func(t *testing.T) {
		fromFile, err := GetFileChecksum(first)
		require.NoError(t, err)
		fromReader, err := ReaderChecksum(strings.NewReader("same bytes"))
		require.NoError(t, err)

		assert.Equal(t, fromFile, fromReader)
	})

	t.Run("Expect: different content yields a different checksum", func(t *testing.T) {
		a, _ := ReaderChecksum(strings.NewReader("one"))
		b, _ := ReaderChecksum(strings.NewReader("two"))
		assert.NotEqual(t, a, b)
	})

	t.Run("Expect: error for a missing file", func(t *testing.T) {
		_, err := GetFileChecksum(filepath.Join(dir, "missing.zip"))
		assert.Error(t, err)
	})
}
