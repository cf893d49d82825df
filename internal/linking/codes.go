// codes.go implements the canonical linking-code format: generation,
// normalization, and the malformed fast-path check that runs before any
// store lookup.
package linking

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// CodePrefix tags every linking code so users and support staff recognise
// the format at a glance.
const CodePrefix = "KITA"

const (
	segmentOneLen = 6
	segmentTwoLen = 7
)

// codeAlphabet excludes characters that are easy to misread when a user
// copies the code between screens (I, L, O, 0, 1).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// codePattern accepts the full uppercase alphanumeric charset — wider than
// the generation alphabet — so a mistyped ambiguous character surfaces as an
// unknown code rather than a format error.
var codePattern = regexp.MustCompile(`^` + CodePrefix + `-[A-Z0-9]{6}-[A-Z0-9]{7}$`)

// GenerateCode returns a fresh code in the canonical KITA-XXXXXX-XXXXXXX
// form. Collision handling is the caller's job: the issuing service retries
// against the store's uniqueness constraint.
func GenerateCode() (string, error) {
	first, err := randomSegment(segmentOneLen)
	if err != nil {
		return "", fmt.Errorf("failed to generate code segment: %w", err)
	}
	second, err := randomSegment(segmentTwoLen)
	if err != nil {
		return "", fmt.Errorf("failed to generate code segment: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", CodePrefix, first, second), nil
}

func randomSegment(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// Normalize prepares user input for lookup: surrounding whitespace is
// trimmed and the code is upper-cased so codes survive being typed on a
// phone keyboard.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidFormat reports whether a normalized code matches the canonical
// shape. Callers reject failures as malformed without touching the store.
func ValidFormat(code string) bool {
	return codePattern.MatchString(code)
}
