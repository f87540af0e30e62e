package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// SHA256Hex returns the hex-encoded SHA256 hash of the input string.
func SHA256Hex(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// IteratedSHA256 applies SHA256 iteratively n times to produce a derived
// hash. Used for device-fingerprint keys so raw network identifiers never
// reach storage.
func IteratedSHA256(input string, iterations int) string {
	data := []byte(input)
	for range iterations {
		h := sha256.Sum256(data)
		data = h[:]
	}
	return hex.EncodeToString(data)
}

// DeviceFingerprint derives a stable device key from salted request
// signals (IP, user agent, accept-language). 1000 iterations makes bulk
// reversal of the keyspace impractical without noticeable request cost.
func DeviceFingerprint(salt, ip, userAgent, acceptLanguage string) string {
	var b strings.Builder
	for _, field := range []string{salt, ip, userAgent, acceptLanguage} {
		// Length-prefix each field so values containing the separator
		// cannot collide across field boundaries.
		b.WriteString(strconv.Itoa(len(field)))
		b.WriteByte('|')
		b.WriteString(field)
	}
	return IteratedSHA256(b.String(), 1000)
}

// ShortHash returns the first n characters of SHA256(input), for log
// correlation without storing the original value.
func ShortHash(input string, n int) string {
	full := SHA256Hex(input)
	if n > len(full) {
		return full
	}
	return full[:n]
}
