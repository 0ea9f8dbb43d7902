package password

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// DefaultGeneratedLength is the length Generate uses when asked for zero.
const DefaultGeneratedLength = 9

// Character classes accepted by Generate. Look-alike glyphs (0/O, 1/l/I)
// are left out.
const (
	lowerChars   = "abcdefghjkmnpqrstuvwxyz"
	upperChars   = "ABCDEFGHJKMNPQRSTUVWXYZ"
	digitChars   = "23456789"
	specialChars = "!@#$%&*?"
)

// ErrCharset is returned when Generate receives an unknown class letter.
var ErrCharset = errors.New("unknown password charset")

// Generate returns a random password of length characters drawn from the
// classes named in charsets: l lower, u upper, d digits, s specials. An
// empty charsets means "lud". Each selected class contributes at least one
// character when length allows.
func Generate(length int, charsets string) (string, error) {
	if length <= 0 {
		length = DefaultGeneratedLength
	}
	if charsets == "" {
		charsets = "lud"
	}

	var classes []string
	for _, c := range charsets {
		var set string
		switch c {
		case 'l':
			set = lowerChars
		case 'u':
			set = upperChars
		case 'd':
			set = digitChars
		case 's':
			set = specialChars
		default:
			return "", ErrCharset
		}
		if !containsString(classes, set) {
			classes = append(classes, set)
		}
	}

	all := strings.Join(classes, "")
	out := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		set := all
		if i < len(classes) {
			set = classes[i]
		}
		c, err := pick(set)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Shuffle so the guaranteed characters are not always in front.
	for i := len(out) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func pick(set string) (byte, error) {
	i, err := randInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
