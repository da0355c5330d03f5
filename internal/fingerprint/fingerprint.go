// Package fingerprint derives the content hash recorded for every batch.
// Hashing is easy in Go thanks to the standard library crypto packages.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// harvestDateLayout is the canonical calendar-date form used in the digest
// payload. Go reference time layouts spell out an example date instead of
// format verbs.
const harvestDateLayout = "2006-01-02"

// Derive computes the SHA-256 fingerprint for a batch. The payload is the
// concatenation farmerName + cropName + quantity + location + harvestDate +
// batchID using each value's canonical string form. The order and the
// canonical forms are a frozen compatibility contract: changing either would
// silently break re-verification of every previously issued fingerprint.
//
// Derive is pure: no I/O, no side effects, and it never fails for any input.
func Derive(farmerName, cropName string, quantity float64, location string, harvestDate time.Time, batchID string) string {
	var payload strings.Builder
	payload.WriteString(farmerName)
	payload.WriteString(cropName)
	// FormatFloat with precision -1 emits the shortest string that parses
	// back to the same float64, so "500" stays "500" rather than "500.00".
	payload.WriteString(strconv.FormatFloat(quantity, 'f', -1, 64))
	payload.WriteString(location)
	payload.WriteString(harvestDate.Format(harvestDateLayout))
	payload.WriteString(batchID)
	sum := sha256.Sum256([]byte(payload.String()))
	// hex.EncodeToString is handy for turning raw bytes into a printable token.
	return hex.EncodeToString(sum[:])
}
