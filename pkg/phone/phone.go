// Package phone normalizes Kenyan MSISDNs for storage and for the
// payment gateway. Classification here is heuristic input routing,
// never authentication.
package phone

import (
	"fmt"
	"strings"
)

// Normalize strips everything except digits, preserving a single
// leading plus sign. Used before persisting a phone as an identity key.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsMSISDN reports whether raw looks like a Kenyan payment phone
// number: digits only (after normalization) with length 9, 10 or 12
// and a plausible leading prefix.
func IsMSISDN(raw string) bool {
	digits := strings.TrimPrefix(Normalize(raw), "+")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}

	switch len(digits) {
	case 9:
		return digits[0] == '7' || digits[0] == '1'
	case 10:
		return digits[0] == '0'
	case 12:
		return strings.HasPrefix(digits, "254")
	default:
		return false
	}
}

// ToMpesaFormat converts a recognized MSISDN into the 254XXXXXXXXX
// shape Daraja expects.
func ToMpesaFormat(raw string) (string, error) {
	if !IsMSISDN(raw) {
		return "", fmt.Errorf("not a valid payment phone number: %q", raw)
	}

	digits := strings.TrimPrefix(Normalize(raw), "+")
	switch len(digits) {
	case 9:
		return "254" + digits, nil
	case 10:
		return "254" + digits[1:], nil
	default:
		return digits, nil
	}
}
