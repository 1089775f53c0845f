// Package code normalizes administrative codes (IBGE municipality and census
// sector identifiers) into fixed-width digit strings usable as join keys.
//
// Codes are never round-tripped through float64: spreadsheets and dataframe
// exports often render them as "3550308.0" or "3.550308e+06", and those forms
// are converted exactly with math/big.
package code

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalid is returned for values that are not a non-negative integral code.
var ErrInvalid = errors.New("code: invalid administrative code")

// Normalize trims raw and returns its digit string. Integral float renderings
// are accepted. When width > 0 the result is left-padded with zeros or cut to
// its leftmost width digits, so a 15-digit sector code cut to 7 yields the
// municipality it belongs to.
func Normalize(raw string, width int) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalid)
	}
	digits, ok := integralDigits(s)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalid, raw)
	}
	return fit(digits, width), nil
}

// InferWidth returns the most common length among codes that are plain digit
// strings. Ties go to the longer length. It returns 0 when no code qualifies.
func InferWidth(codes []string) int {
	counts := map[int]int{}
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if d, ok := integralDigits(c); ok {
			counts[len(d)]++
		}
	}
	best, bestN := 0, 0
	for l, n := range counts {
		if n > bestN || (n == bestN && l > best) {
			best, bestN = l, n
		}
	}
	return best
}

func fit(digits string, width int) string {
	switch {
	case width <= 0:
		return digits
	case len(digits) < width:
		return strings.Repeat("0", width-len(digits)) + digits
	case len(digits) > width:
		return digits[:width]
	default:
		return digits
	}
}

func integralDigits(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	if allDigits(s) {
		return s, true
	}
	// Only decimal float syntax; big.Rat would otherwise accept fractions
	// and base prefixes.
	if s[0] < '0' || s[0] > '9' {
		return "", false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == 'e', r == 'E', r == '+', r == '-':
		default:
			return "", false
		}
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok || r.Sign() < 0 || !r.IsInt() {
		return "", false
	}
	return r.Num().String(), true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
