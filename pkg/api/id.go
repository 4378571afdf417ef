package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type (
	// RunID uniquely identifies one pipeline invocation
	RunID string

	// AnalystKey names a registered analyst capability
	AnalystKey string
)

// NewRunID returns a fresh run identifier
func NewRunID() RunID {
	return RunID(uuid.New().String())
}

// InvalidKeyChars matches characters not permitted in analyst keys. Valid
// characters are: letters, digits, underscore, dot, hyphen, plus, space
var InvalidKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+ ]`)

// SanitizeKey lowercases a key, removes invalid characters, replaces spaces
// with underscores, and trims leading and trailing underscores
func SanitizeKey[T ~string](key T) T {
	lower := strings.ToLower(string(key))
	sanitized := InvalidKeyChars.ReplaceAllString(lower, "")
	sanitized = strings.ReplaceAll(sanitized, " ", "_")
	return T(strings.Trim(sanitized, "_"))
}
