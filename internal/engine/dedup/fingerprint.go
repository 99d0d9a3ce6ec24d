// internal/engine/dedup/fingerprint.go
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"autoapply-engine/internal/models"
)

const fingerprintSeparator = "|"

// normalize lower-cases a field and collapses internal whitespace so that
// cosmetic differences between crawls do not change the fingerprint.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Fingerprint derives the stable deduplication key of a posting from its
// normalized identity fields. The raw URL is deliberately excluded: the
// same posting surfaces under different URLs across crawls and sources.
func Fingerprint(c models.JobCandidate) string {
	key := normalize(c.Title) + fingerprintSeparator +
		normalize(c.Company) + fingerprintSeparator +
		normalize(c.Location)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
