// Package checksum verifies block digests returned by the EBS direct APIs
// (C2). Each GetSnapshotBlock response carries a base64-encoded SHA-256
// digest of the block payload; Verify recomputes it and compares.
package checksum

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/RhinoSecurityLabs/dsnap/internal/logger"
)

// Algorithm is the only digest algorithm the EBS direct APIs currently
// advertise. Callers should reject responses that claim anything else.
const Algorithm = "SHA256"

// Verify reports whether the SHA-256 digest of data, base64-encoded,
// matches expected. It logs a warning (not an error — the caller decides how
// to fail) on mismatch so a failing block is identifiable in logs.
func Verify(data []byte, expected string) bool {
	got := Sum(data)
	if got == expected {
		return true
	}
	logger.Warn("checksum mismatch", "expected", expected, "got", got)
	return false
}

// Sum returns the base64-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}
