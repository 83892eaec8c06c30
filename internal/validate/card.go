package validate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrCardLength   = errors.New("card number must have 13 to 19 digits")
	ErrCardChecksum = errors.New("card number fails the Luhn check")
	ErrCVV          = errors.New("CVV must have 3 or 4 digits")
	ErrExpiryFormat = errors.New("expiry must be MM/YY")
	ErrExpiryMonth  = errors.New("expiry month must be 01-12")
	ErrCardExpired  = errors.New("card expired")
)

var (
	cardDigits = regexp.MustCompile(`^\d{13,19}$`)
	cvvDigits  = regexp.MustCompile(`^\d{3,4}$`)
)

// CardNumber checks length and Luhn checksum; whitespace is ignored.
func CardNumber(s string) error {
	n := stripSpaces(s)
	if !cardDigits.MatchString(n) {
		return ErrCardLength
	}
	if !Luhn(n) {
		return ErrCardChecksum
	}
	return nil
}

// Luhn reports whether the digit string passes the Luhn (mod 10) check.
// Non-digit input returns false.
func Luhn(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

var cardBrands = []struct {
	name string
	re   *regexp.Regexp
}{
	{"Visa", regexp.MustCompile(`^4\d*$`)},
	{"MasterCard", regexp.MustCompile(`^5[1-5]\d*$`)},
	{"Amex", regexp.MustCompile(`^3[47]\d*$`)},
	{"Discover", regexp.MustCompile(`^6(?:011|5\d{2})\d*$`)},
	{"Diners Club", regexp.MustCompile(`^3(?:0[0-5]|[68]\d)\d{4,}$`)},
	{"JCB", regexp.MustCompile(`^(?:2131|1800|35\d{3})\d{11}$`)},
}

// CardBrand guesses the issuer from the number prefix, or "Unknown".
func CardBrand(s string) string {
	n := stripSpaces(s)
	for _, b := range cardBrands {
		if b.re.MatchString(n) {
			return b.name
		}
	}
	return "Unknown"
}

// CVV checks a 3 or 4 digit security code.
func CVV(s string) error {
	if !cvvDigits.MatchString(s) {
		return ErrCVV
	}
	return nil
}

// Expiry checks an "MM/YY" expiry against now. A card is valid through its expiry month.
func Expiry(s string, now time.Time) error {
	mm, yy, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return ErrExpiryFormat
	}
	month, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil {
		return ErrExpiryFormat
	}
	year, err := strconv.Atoi(strings.TrimSpace(yy))
	if err != nil {
		return ErrExpiryFormat
	}
	if month < 1 || month > 12 {
		return ErrExpiryMonth
	}
	curYear, curMonth := now.Year()%100, int(now.Month())
	if year < curYear || (year == curYear && month < curMonth) {
		return ErrCardExpired
	}
	return nil
}

// FormatCardNumber groups digits in blocks of four.
func FormatCardNumber(s string) string {
	n := stripSpaces(s)
	var b strings.Builder
	for i := 0; i < len(n); i++ {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(n[i])
	}
	return b.String()
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
