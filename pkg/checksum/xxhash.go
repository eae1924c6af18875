package checksum

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// GetFileChecksum returns the hex xxhash64 digest of a file's contents.
func GetFileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	sum, err := ReaderChecksum(file)
	if err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", filePath, err)
	}
	return sum, nil
}

func ReaderChecksum(r io.Reader) (string, error) {
	hasher := xxhash.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
