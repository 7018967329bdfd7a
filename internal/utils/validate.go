package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidEmail reports whether s is a syntactically valid address.
func IsValidEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// NormalizeEmail trims surrounding whitespace.  Case is preserved because the
// users table compares emails as stored.
func NormalizeEmail(s string) string {
	return strings.TrimSpace(s)
}
