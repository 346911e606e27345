package domain

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a stable 64-bit digest of the error signature.
// Identical inputs always produce the identical hash, so repeated
// occurrences of the same logical error can be grouped later.
func Fingerprint(serviceName, errorType, errorMessage, endpoint string) string {
	sig := serviceName + ":" + errorType + ":" + errorMessage + ":" + endpoint
	return fmt.Sprintf("%016x", xxhash.Sum64String(sig))
}
