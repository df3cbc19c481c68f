package fetch

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"etch/internal/faults"
)

// FileSHA256 returns the hex digest of the file at path.
func FileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, bufio.NewReader(file)); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifySHA256 compares the file's digest to the expected hex string,
// case-insensitively.
func VerifySHA256(path, expected string) error {
	actual, err := FileSHA256(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return faults.Wrap(faults.ErrVerify, "fetch", "checksum",
			fmt.Sprintf("sha256 mismatch for %s: expected %s, got %s", path, expected, actual), nil)
	}
	return nil
}

// QuickVerify reports whether a previously downloaded file is usable. An
// empty or placeholder expected hash downgrades to an existence check:
// upstream catalogs do not always publish digests.
func QuickVerify(path, expected string) bool {
	if expected == "" || strings.HasPrefix(expected, "PLACEHOLDER") {
		_, err := os.Stat(path)
		return err == nil
	}
	return VerifySHA256(path, expected) == nil
}
