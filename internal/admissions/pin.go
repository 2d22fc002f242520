package admissions

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	pinDigits       = 16
	pinSegment      = 4
	pinSegmentSpace = 10000
)

// NormalizePin strips hyphens from raw and returns the 16 bare digits.
func NormalizePin(raw string) (string, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(raw), "-", "")
	if len(clean) != pinDigits {
		return "", newError(CodeInvalidFormat, "Invalid PIN format. PIN must be 16 digits.")
	}
	for i := 0; i < len(clean); i++ {
		if clean[i] < '0' || clean[i] > '9' {
			return "", newError(CodeInvalidFormat, "Invalid PIN format. PIN must be 16 digits.")
		}
	}
	return clean, nil
}

// FormatPin groups 16 digits as XXXX-XXXX-XXXX-XXXX. It expects the output of NormalizePin.
func FormatPin(digits string) string {
	var b strings.Builder
	b.Grow(pinDigits + 3)
	for i := 0; i < len(digits); i += pinSegment {
		if i > 0 {
			b.WriteByte('-')
		}
		end := min(i+pinSegment, len(digits))
		b.WriteString(digits[i:end])
	}
	return b.String()
}

// CanonicalPin normalizes raw and returns the canonical hyphenated lookup key.
func CanonicalPin(raw string) (string, error) {
	digits, err := NormalizePin(raw)
	if err != nil {
		return "", err
	}
	return FormatPin(digits), nil
}

// GeneratePin returns four independent random zero-padded segments joined by hyphens.
func GeneratePin() (string, error) {
	segments := make([]string, 0, pinDigits/pinSegment)
	limit := big.NewInt(pinSegmentSpace)
	for range pinDigits / pinSegment {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to read random segment: %w", err)
		}
		segments = append(segments, fmt.Sprintf("%04d", n.Int64()))
	}
	return strings.Join(segments, "-"), nil
}
