// Package email normalizes and validates email addresses used as login names.
package email

import (
	"net/mail"
	"strings"
	"unicode"

	dErrors "rolegate/pkg/domain-errors"
)

// Normalize trims and lowercases an address so lookups are case-insensitive.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Validate reports whether address is a bare RFC 5322 address.
//
// Errors: CodeValidation when empty, carrying a display name, or unparseable.
func Validate(address string) error {
	if address == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return dErrors.Newf(dErrors.CodeValidation, "invalid email %q", address)
	}
	return nil
}

// DeriveFullName builds a display name from the local part, e.g.
// "jane.doe@example.com" becomes "Jane Doe".
func DeriveFullName(address string) string {
	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User"
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
