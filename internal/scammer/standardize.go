package scammer

import (
	"regexp"
	"strings"

	"fraudcase/internal/models"
)

var (
	nonDigit   = regexp.MustCompile(`\D`)
	whitespace = regexp.MustCompile(`\s+`)
	accountSep = regexp.MustCompile(`[\s\-]+`)
)

// Standardize canonicalises identifiers so that equality comparison is
// case-insensitive and ignores formatting noise.
func Standardize(ids models.ScammerIdentifiers) models.ScammerIdentifiers {
	return models.ScammerIdentifiers{
		Name:          collapse(ids.Name),
		Phone:         StandardizePhone(ids.Phone),
		Email:         strings.ToLower(strings.TrimSpace(ids.Email)),
		PaymentHandle: strings.ToLower(strings.TrimSpace(ids.PaymentHandle)),
		BankAccount:   strings.ToUpper(accountSep.ReplaceAllString(strings.TrimSpace(ids.BankAccount), "")),
		RoutingCode:   strings.ToUpper(strings.TrimSpace(ids.RoutingCode)),
		Address:       collapse(ids.Address),
	}
}

// StandardizePhone keeps digits only and drops the Indian country code or
// trunk prefix from otherwise ten digit mobile numbers.
func StandardizePhone(phone string) string {
	digits := nonDigit.ReplaceAllString(phone, "")

	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return digits[1:]
	default:
		return digits
	}
}

func collapse(s string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}
