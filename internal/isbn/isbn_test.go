package isbn_test

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/larkwiot/shelf/internal/isbn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const howToHackLikeAGhost = "            <p>ISBN-13: 978-1-7185-0126-3 (print) \nISBN-13: 978-1-7185-0127-0 (ebook)\n</p>\nIdentifiers: LCCN 2020052503 (print) | LCCN 2020052504 (ebook) | ISBN \n   9781718501263 (paperback) | ISBN 1718501269 (paperback) | ISBN \n   9781718501270 (ebook)  \nSubjects: LCSH: Computer networks--Security measures. | Hacking. | Cloud \n   computing--Security measures. | Penetration testing (Computer networks) \nClassification: LCC TK5105.59 .F624 2021  (print) | LCC TK5105.59  (ebook) \n   | DDC 005.8/7--dc23 \nLC record available at https://lccn.loc.gov/2020052503\nLC ebook record available at https://lccn.loc.gov/2020052504\n</p>"

func TestNormalize(t *testing.T) {
	assert.Equal(t, isbn.Canonical("9780306406157"), isbn.Normalize("978-0-306-40615-7"))
	assert.Equal(t, isbn.Canonical("080442957X"), isbn.Normalize(" 0 8044 2957 x "))
	assert.Equal(t, isbn.Canonical(""), isbn.Normalize("no digits here"))
	assert.Equal(t, isbn.Canonical("12"), isbn.Normalize("1-2"))
}

func TestValidateIsbn10(t *testing.T) {
	v := isbn.Validate(isbn.Normalize("0-306-40615-2"))
	assert.True(t, v.Valid)
	assert.Equal(t, isbn.ISBN10, v.Kind)
	assert.Empty(t, v.Reason)

	v = isbn.Validate("080442957X")
	assert.True(t, v.Valid)
	assert.Equal(t, "ISBN-10", v.Kind.String())

	v = isbn.Validate("1718501269")
	assert.True(t, v.Valid)

	v = isbn.Validate("0306406153")
	assert.False(t, v.Valid)
	assert.Equal(t, isbn.ReasonChecksum, v.Reason)

	v = isbn.Validate("X123456789")
	assert.False(t, v.Valid)
	assert.Equal(t, isbn.ReasonCharacters, v.Reason)
}

func TestValidateIsbn13(t *testing.T) {
	v := isbn.Validate(isbn.Normalize("978-0-306-40615-7"))
	assert.True(t, v.Valid)
	assert.Equal(t, isbn.ISBN13, v.Kind)

	assert.True(t, isbn.Validate("9781718501263").Valid)
	assert.True(t, isbn.Validate("9781718501270").Valid)
	assert.False(t, isbn.Validate("1234567891123").Valid)

	v = isbn.Validate("978030640615X")
	assert.False(t, v.Valid)
	assert.Equal(t, isbn.ReasonDigitsOnly, v.Reason)
}

func TestValidateArbitraryThirteenDigits(t *testing.T) {
	// 1+6+3+12+5+18+7+24+9+0+1+6 = 92, so the check digit must be 8.
	v := isbn.Validate("1234567890123")
	assert.False(t, v.Valid)
	assert.Equal(t, isbn.ReasonChecksum, v.Reason)

	assert.True(t, isbn.Validate("1234567890128").Valid)
}

func TestValidateLength(t *testing.T) {
	for _, raw := range []string{"", "123", "12345678901", "12345678901234"} {
		v := isbn.Validate(isbn.Normalize(raw))
		assert.False(t, v.Valid, raw)
		assert.Equal(t, isbn.ReasonLength, v.Reason, raw)
		assert.Equal(t, isbn.Unknown, v.Kind, raw)
	}
}

func TestValidateAcceptsRepeatedDigits(t *testing.T) {
	assert.True(t, isbn.Validate("0000000000").Valid)
	assert.True(t, isbn.Validate("0000000000000").Valid)
	assert.False(t, isbn.Validate("1111111111111").Valid)
}

func TestConvert10To13(t *testing.T) {
	converted, ok := isbn.Convert10To13("0-306-40615-2").Get()
	require.True(t, ok)
	assert.Equal(t, isbn.Canonical("9780306406157"), converted)

	converted, ok = isbn.Convert10To13("080442957X").Get()
	require.True(t, ok)
	assert.Equal(t, isbn.Canonical("9780804429573"), converted)

	assert.True(t, isbn.Convert10To13("9780306406157").IsAbsent())
	assert.True(t, isbn.Convert10To13("12345").IsAbsent())
}

func TestConvert13To10(t *testing.T) {
	converted, ok := isbn.Convert13To10("9780306406157").Get()
	require.True(t, ok)
	assert.Equal(t, isbn.Canonical("0306406152"), converted)

	converted, ok = isbn.Convert13To10("978-0-8044-2957-3").Get()
	require.True(t, ok)
	assert.Equal(t, isbn.Canonical("080442957X"), converted)

	assert.True(t, isbn.Convert13To10("9791034304503").IsAbsent())
	assert.True(t, isbn.Convert13To10("9780306406158").IsAbsent())
	assert.True(t, isbn.Convert13To10("0306406152").IsAbsent())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0-306-40615-2", isbn.Format("0306406152"))
	assert.Equal(t, "978-0-306-40615-7", isbn.Format("9780306406157"))
	assert.Equal(t, "12345", isbn.Format("12345"))
}

func TestVariants(t *testing.T) {
	assert.Equal(t,
		[]string{"0306406152", "0-306-40615-2", "9780306406157", "978-0-306-40615-7"},
		isbn.Variants("0-306-40615-2"))
	assert.Equal(t,
		[]string{"9780306406157", "978-0-306-40615-7"},
		isbn.Variants("978 0 306 40615 7"))
	assert.Equal(t, []string{"123"}, isbn.Variants("123"))

	// every call yields an independent slice
	first := isbn.Variants("0306406152")
	first[0] = "mutated"
	assert.Equal(t, "0306406152", isbn.Variants("0306406152")[0])
}

func TestDigitVariants(t *testing.T) {
	assert.Equal(t, []isbn.Canonical{"0306406152", "9780306406157"}, isbn.DigitVariants("0-306-40615-2"))
	assert.Equal(t, []isbn.Canonical{"9780306406157"}, isbn.DigitVariants("9780306406157"))
}

func TestIdentify(t *testing.T) {
	found := isbn.Identify(howToHackLikeAGhost)
	assert.Equal(t, []isbn.Canonical{"9781718501263", "9781718501270", "2020052504", "1718501269"}, found)

	assert.Empty(t, isbn.Identify("nothing to see here, 12345"))
}

func randomIsbn10(r *rand.Rand) string {
	var b strings.Builder
	sum := 0
	for i := 0; i < 9; i++ {
		d := r.Intn(10)
		sum += d * (10 - i)
		b.WriteString(fmt.Sprint(d))
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		b.WriteByte('X')
	} else {
		b.WriteString(fmt.Sprint(check))
	}
	return b.String()
}

func TestRandomIsbn10Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		s := randomIsbn10(r)
		c := isbn.Normalize(s)

		v := isbn.Validate(c)
		require.True(t, v.Valid, s)
		assert.Equal(t, isbn.ISBN10, v.Kind, s)

		assert.Equal(t, c, isbn.Normalize(isbn.Format(c)), s)

		converted, ok := isbn.Convert10To13(s).Get()
		require.True(t, ok, s)
		assert.True(t, strings.HasPrefix(string(converted), "978"+s[:9]), s)
		assert.True(t, isbn.Validate(converted).Valid, s)

		back, ok := isbn.Convert13To10(string(converted)).Get()
		require.True(t, ok, s)
		assert.Equal(t, c, back, s)
	}
}

func TestRandomIsbn13Properties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		digits := make([]byte, 13)
		sum := 0
		for j := 0; j < 12; j++ {
			d := r.Intn(10)
			digits[j] = byte('0' + d)
			if j%2 == 0 {
				sum += d
			} else {
				sum += 3 * d
			}
		}
		digits[12] = byte('0' + (10-sum%10)%10)
		c := isbn.Canonical(digits)

		v := isbn.Validate(c)
		require.True(t, v.Valid, string(c))
		assert.Equal(t, isbn.ISBN13, v.Kind)
		assert.Equal(t, c, isbn.Normalize(isbn.Format(c)))

		wrong := []byte(string(c))
		wrong[12] = byte('0' + (int(wrong[12]-'0')+1)%10)
		assert.False(t, isbn.Validate(isbn.Canonical(wrong)).Valid)
	}
}
