// Package isbn normalizes, validates, converts and formats ISBN-10 and ISBN-13
// identifiers. Nothing in this package returns an error: an invalid identifier
// is reported through Validation.
package isbn

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Canonical is an ISBN reduced to its digits and an optional upper-case X.
// It is also the key of the lookup cache.
type Canonical string

type Kind int

const (
	Unknown Kind = iota
	ISBN10
	ISBN13
)

func (k Kind) String() string {
	switch k {
	case ISBN10:
		return "ISBN-10"
	case ISBN13:
		return "ISBN-13"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

const (
	ReasonLength         = "must have 10 or 13 digits"
	ReasonCharacters     = "ISBN-10 contains invalid characters"
	ReasonCheckCharacter = "invalid check digit"
	ReasonDigitsOnly     = "ISBN-13 must contain only digits"
	ReasonChecksum       = "incorrect check digit"
)

// Validation is the outcome of Validate. Kind is only meaningful when Valid.
type Validation struct {
	Valid  bool   `json:"valid"`
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

func invalid(reason string) Validation {
	return Validation{Reason: reason}
}

// Normalize keeps digits and the letter X, upper-cased. It accepts any input
// and may return a string of any length.
func Normalize(raw string) Canonical {
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		switch {
		case '0' <= c && c <= '9':
			b.WriteRune(c)
		case c == 'x' || c == 'X':
			b.WriteByte('X')
		}
	}
	return Canonical(b.String())
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func Validate(c Canonical) Validation {
	switch len(c) {
	case 10:
		return validate10(string(c))
	case 13:
		return validate13(string(c))
	default:
		return invalid(ReasonLength)
	}
}

func validate10(s string) Validation {
	sum := 0
	for i := 0; i < 9; i++ {
		if !isDigit(s[i]) {
			return invalid(ReasonCharacters)
		}
		sum += int(s[i]-'0') * (10 - i)
	}

	switch {
	case s[9] == 'X':
		sum += 10
	case isDigit(s[9]):
		sum += int(s[9] - '0')
	default:
		return invalid(ReasonCheckCharacter)
	}

	if sum%11 != 0 {
		return invalid(ReasonChecksum)
	}
	return Validation{Valid: true, Kind: ISBN10}
}

func validate13(s string) Validation {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return invalid(ReasonDigitsOnly)
		}
	}
	if checkDigit13(s[:12]) != s[12] {
		return invalid(ReasonChecksum)
	}
	return Validation{Valid: true, Kind: ISBN13}
}

// checkDigit13 computes the ISBN-13 check digit of twelve leading digits.
func checkDigit13(base string) byte {
	sum := 0
	weight := 1
	for i := 0; i < 12; i++ {
		sum += int(base[i]-'0') * weight
		weight ^= 1 ^ 3
	}
	return byte('0' + (10-sum%10)%10)
}

// checkDigit10 computes the ISBN-10 check character of nine leading digits.
func checkDigit10(base string) byte {
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(base[i]-'0') * (10 - i)
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return 'X'
	}
	return byte('0' + check)
}

// Convert10To13 prefixes 978 to the first nine digits of an ISBN-10 and
// appends a freshly computed ISBN-13 check digit. The input's own check digit
// is not verified.
func Convert10To13(raw string) mo.Option[Canonical] {
	c := Normalize(raw)
	if len(c) != 10 {
		return mo.None[Canonical]()
	}
	base := "978" + string(c[:9])
	for i := 3; i < 12; i++ {
		if !isDigit(base[i]) {
			return mo.None[Canonical]()
		}
	}
	return mo.Some(Canonical(base + string(checkDigit13(base))))
}

// Convert13To10 is the inverse of Convert10To13 for valid 978-prefixed
// ISBN-13s. 979 identifiers have no ISBN-10 form.
func Convert13To10(raw string) mo.Option[Canonical] {
	c := Normalize(raw)
	if len(c) != 13 || !strings.HasPrefix(string(c), "978") || !Validate(c).Valid {
		return mo.None[Canonical]()
	}
	base := string(c[3:12])
	return mo.Some(Canonical(base + string(checkDigit10(base))))
}

// Format hyphenates 10 (1-3-5-1) and 13 (3-1-3-5-1) character identifiers.
// Anything else is returned unchanged.
func Format(c Canonical) string {
	s := string(c)
	switch len(s) {
	case 10:
		return strings.Join([]string{s[0:1], s[1:4], s[4:9], s[9:10]}, "-")
	case 13:
		return strings.Join([]string{s[0:3], s[3:4], s[4:7], s[7:12], s[12:13]}, "-")
	default:
		return s
	}
}

// Variants lists equivalent spellings of raw so lookups can try systems that
// index by either standard: canonical, hyphenated, and for ISBN-10 the
// ISBN-13 form and its hyphenation.
func Variants(raw string) []string {
	c := Normalize(raw)
	variants := []string{string(c)}

	if formatted := Format(c); formatted != string(c) {
		variants = append(variants, formatted)
	}

	if isbn13, ok := Convert10To13(string(c)).Get(); ok {
		variants = append(variants, string(isbn13), Format(isbn13))
	}

	return variants
}

// DigitVariants is Variants without the hyphenated spellings, which is what
// URL-keyed sources need.
func DigitVariants(raw string) []Canonical {
	return lo.FilterMap(Variants(raw), func(v string, _ int) (Canonical, bool) {
		return Canonical(v), !strings.Contains(v, "-")
	})
}

var candidatePattern = regexp.MustCompile(`\b(?:97[89][\s-]?)?(?:\d[\s-]?){9}[\dXx]\b`)

// Identify finds checksum-valid ISBNs in free text, in order of first
// appearance and without duplicates.
func Identify(text string) []Canonical {
	occurrences := candidatePattern.FindAllString(text, -1)
	found := lo.FilterMap(occurrences, func(occ string, _ int) (Canonical, bool) {
		c := Normalize(occ)
		return c, Validate(c).Valid
	})
	return lo.Uniq(found)
}
