package credentials

import "strings"

// Secret wraps a credential value. Formatting a Secret never prints the raw value.
type Secret struct {
	value string
}

func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Reveal returns the raw value. Callers are the validators in this package,
// the at-rest encoder and outbound connector clients.
func (s Secret) Reveal() string {
	return s.value
}

// Blank reports whether the value is empty after trimming whitespace.
func (s Secret) Blank() bool {
	return strings.TrimSpace(s.value) == ""
}

func (s Secret) String() string {
	return MaskSecret(s.value)
}

func (s Secret) GoString() string {
	return s.String()
}

// minMaskedLength is the shortest secret that keeps a visible prefix and tail.
// Anything shorter is fully masked.
const minMaskedLength = 12

// MaskSecret keeps a short key prefix (pk_, sk_) and the last four characters
// of secrets of at least minMaskedLength characters.
func MaskSecret(secret string) string {
	s := strings.TrimSpace(secret)
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) < minMaskedLength {
		return "****"
	}
	tail := string(runes[len(runes)-4:])
	prefix := ""
	if idx := strings.Index(s, "_"); idx > 0 && idx <= 6 {
		prefix = s[:idx+1]
	}
	return prefix + "****" + tail
}
