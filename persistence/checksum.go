package persistence

import (
	"fmt"

	"github.com/hupe1980/rangebitmap/internal/hash"
)

// Checksums guard against accidental storage corruption; they are not a
// tamper-detection mechanism.

// ChecksumMismatchError is returned when the payload checksum does not match
// the envelope header.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

func verifyChecksum(payload []byte, expected uint32) error {
	if actual := hash.CRC32C(payload); actual != expected {
		return &ChecksumMismatchError{Expected: expected, Actual: actual}
	}

	return nil
}
