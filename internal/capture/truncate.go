package capture

import (
	"crypto/sha256"
	"encoding/hex"
)

// truncateValue shortens secrets for logging. It returns the kept prefix,
// whether anything was cut, the original length and a sha256 of the full
// value when cut.
func truncateValue(in string, maxBytes int) (string, bool, int, string) {
	if maxBytes <= 0 || len(in) <= maxBytes {
		return in, false, len(in), ""
	}
	sum := sha256.Sum256([]byte(in))
	return in[:maxBytes] + "...", true, len(in), hex.EncodeToString(sum[:])
}
