// Package validate holds the checksum validators used by the board forms
// (Chilean RUT, payment card numbers) and the struct validator that checks
// request payloads before they reach the network.
package validate

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidRUT is returned for a RUT that fails the format or mod-11 check.
var ErrInvalidRUT = errors.New("invalid RUT")

// minRUTBody is the minimum number of digits before the check digit.
const minRUTBody = 7

// CleanRUT strips dots and dashes and upper-cases the check digit.
func CleanRUT(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.ToUpper(s)
}

// RUT validates a Chilean RUT such as "12.345.678-5" or "123456785".
// An empty string is accepted; callers mark the field required separately.
func RUT(s string) error {
	clean := CleanRUT(s)
	if clean == "" {
		return nil
	}
	if len(clean) < 2 {
		return ErrInvalidRUT
	}
	body, dv := clean[:len(clean)-1], clean[len(clean)-1:]
	if len(body) < minRUTBody || !allDigits(body) || sameDigit(body) {
		return ErrInvalidRUT
	}
	if RUTCheckDigit(body) != dv {
		return ErrInvalidRUT
	}
	return nil
}

// RUTCheckDigit computes the mod-11 check digit ("0"-"9" or "K") for a digit body.
func RUTCheckDigit(body string) string {
	sum, mul := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * mul
		if mul < 7 {
			mul++
		} else {
			mul = 2
		}
	}
	switch r := 11 - sum%11; r {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return strconv.Itoa(r)
	}
}

// FormatRUT keeps only digits and K and places the dash before the check digit.
func FormatRUT(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= '0' && r <= '9') || r == 'K' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 1 {
		out = out[:len(out)-1] + "-" + out[len(out)-1:]
	}
	return out
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func sameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return len(s) > 1
}
