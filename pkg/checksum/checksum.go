// Package checksum provides the SHA-256 hashing used for receipt integrity.
// Every ingested photo is hashed once: the hex digest becomes the per-chat
// dedupe key, the archive object name, and the integrity record an admin
// fetch later re-verifies the stored bytes against.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// SHA256Hex returns the lowercase hex SHA-256 digest of data. Receipt photos
// arrive fully buffered from the Telegram download, so this in-memory variant
// is the one the ingest path uses.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CalculateSHA256 hashes a stream without buffering it, for callers that read
// straight off a storage backend.
func CalculateSHA256(reader io.Reader) (string, error) {
	hasher := sha256.New()

	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifySHA256 re-hashes the stream and compares it against the checksum
// recorded at ingest time. The actual digest is returned alongside the verdict
// so a mismatch can be logged with both values.
func VerifySHA256(reader io.Reader, expected string) (ok bool, actual string, err error) {
	actual, err = CalculateSHA256(reader)
	if err != nil {
		return false, "", err
	}

	return actual == expected, actual, nil
}
