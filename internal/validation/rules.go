// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"
	"unicode"

	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	apperrors "github.com/allisson/orderflow/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) == s
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// Identifier validates upper snake case names such as event and saga types.
var Identifier = validation.NewStringRuleWithError(
	func(s string) bool {
		for _, r := range s {
			if r != '_' && !unicode.IsUpper(r) && !unicode.IsDigit(r) {
				return false
			}
		}
		return true
	},
	validation.NewError("validation_identifier", "must contain only upper case letters, digits and underscores"),
)

// PositiveDecimal validates that a decimal.Decimal (or *decimal.Decimal) is greater than zero.
var PositiveDecimal = validation.By(func(value interface{}) error {
	var d decimal.Decimal
	switch v := value.(type) {
	case decimal.Decimal:
		d = v
	case *decimal.Decimal:
		if v == nil {
			return validation.NewError("validation_positive_decimal", "must be greater than zero")
		}
		d = *v
	default:
		return validation.NewError("validation_positive_decimal_type", "must be a decimal")
	}
	if !d.IsPositive() {
		return validation.NewError("validation_positive_decimal", "must be greater than zero")
	}
	return nil
})

// MaxDecimalPlaces validates that a decimal has at most places fractional digits.
func MaxDecimalPlaces(places int32) validation.Rule {
	return validation.By(func(value interface{}) error {
		d, ok := value.(decimal.Decimal)
		if !ok {
			return validation.NewError("validation_decimal_places_type", "must be a decimal")
		}
		if !d.Equal(d.Round(places)) {
			return validation.NewError("validation_decimal_places", "has too many decimal places")
		}
		return nil
	})
}
