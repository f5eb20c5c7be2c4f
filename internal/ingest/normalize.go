package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes message text for duplicate detection: NFKC fold,
// lowercase, collapse whitespace runs to single spaces, trim. Idempotent.
func Normalize(text string) string {
	folded := norm.NFKC.String(text)
	lowered := strings.ToLower(folded)
	return strings.Join(strings.Fields(lowered), " ")
}

// HashContent fingerprints normalized text as lowercase hex SHA-256.
func HashContent(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
