package crypto

import "strings"

const (
	encPrefix = "ENC("
	encSuffix = ")"
)

// Wrap marks a ciphertext for storage in configuration.
func Wrap(ciphertext string) string {
	return encPrefix + ciphertext + encSuffix
}

// Unwrap strips the ENC(...) marker. ok is false when s is not wrapped, in
// which case s is returned trimmed.
func Unwrap(s string) (ciphertext string, ok bool) {
	s = strings.TrimSpace(s)
	if !IsEncrypted(s) {
		return s, false
	}
	return s[len(encPrefix) : len(s)-len(encSuffix)], true
}

// IsEncrypted reports whether s carries the ENC(...) marker.
func IsEncrypted(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= len(encPrefix)+len(encSuffix) &&
		strings.HasPrefix(s, encPrefix) && strings.HasSuffix(s, encSuffix)
}
