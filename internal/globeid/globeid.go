package globeid

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// MaxLen is the longest accepted globe id, in characters.
const MaxLen = 12

const (
	consonants = "bcdfghjklmnpqrstvwxz"
	vowels     = "aeiou"
	digits     = "0123456789"
)

// ErrInvalid is wrapped by every Normalize failure.
var ErrInvalid = errors.New("invalid globe id")

var pattern = regexp.MustCompile(`^[a-z0-9_]+$`)

var lower = cases.Lower(language.Und)

// Normalize folds raw into its canonical form or reports why it cannot be
// used as a globe id.
func Normalize(raw string) (string, error) {
	id := lower.String(norm.NFKC.String(strings.TrimSpace(raw)))
	if id == "" {
		return "", fmt.Errorf("%w: globe_id is required", ErrInvalid)
	}
	if utf8.RuneCountInString(id) > MaxLen {
		return "", fmt.Errorf("%w: globe_id should not be longer than %d characters", ErrInvalid, MaxLen)
	}
	if !pattern.MatchString(id) {
		return "", fmt.Errorf("%w: globe_id contains invalid characters", ErrInvalid)
	}
	return id, nil
}

// Generate returns a random id shaped CVCVddCVCV.
func Generate() string {
	var b strings.Builder
	b.Grow(10)
	for _, set := range []string{consonants, vowels, consonants, vowels, digits, digits, consonants, vowels, consonants, vowels} {
		b.WriteByte(set[rand.IntN(len(set))])
	}
	return b.String()
}
