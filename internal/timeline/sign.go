package timeline

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidSign is returned for sign names that are empty or unsafe to use
// as storage keys.
var ErrInvalidSign = errors.New("invalid sign name")

// CanonicalSign returns the storage key for a sign name: NFKC-normalized,
// case-folded, trimmed, with inner whitespace runs replaced by "_".
func CanonicalSign(name string) (string, error) {
	s := cases.Fold().String(norm.NFKC.String(name))
	s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), "_")
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return "", ErrInvalidSign
	}
	return s, nil
}
