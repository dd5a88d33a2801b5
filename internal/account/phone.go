package account

import (
	"strings"
	"unicode"
)

// NormalizePhone converts Kenyan mobile numbers into the stored local form
// (leading zero). "+254712345678", "254712345678", "0712345678" and
// "712345678" all become "0712345678". Non-Kenyan input is returned as digits.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "254") && len(digits) == 12:
		return "0" + digits[3:]
	case len(digits) == 9 && (digits[0] == '7' || digits[0] == '1'):
		return "0" + digits
	}
	return digits
}

// InternationalPhone converts a stored local number to the 254 prefix the
// gateway expects.
func InternationalPhone(local string) string {
	n := NormalizePhone(local)
	if strings.HasPrefix(n, "0") && len(n) == 10 {
		return "254" + n[1:]
	}
	return n
}
