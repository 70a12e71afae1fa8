package validation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/orderflow/internal/errors"
)

func TestNoWhitespace(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		shouldErr bool
	}{
		{
			name:      "no whitespace",
			input:     "validstring",
			shouldErr: false,
		},
		{
			name:      "leading whitespace",
			input:     " validstring",
			shouldErr: true,
		},
		{
			name:      "trailing whitespace",
			input:     "validstring ",
			shouldErr: true,
		},
		{
			name:      "both leading and trailing",
			input:     " validstring ",
			shouldErr: true,
		},
		{
			name:      "internal spaces allowed",
			input:     "valid string",
			shouldErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NoWhitespace.Validate(tt.input)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNotBlank(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		shouldErr bool
	}{
		{
			name:      "valid string",
			input:     "validstring",
			shouldErr: false,
		},
		{
			name:      "only spaces",
			input:     "   ",
			shouldErr: true,
		},
		{
			name:      "only tabs",
			input:     "\t\t",
			shouldErr: true,
		},
		{
			name:      "only newlines",
			input:     "\n\n",
			shouldErr: true,
		},
		{
			name:      "mixed whitespace",
			input:     " \t\n ",
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NotBlank.Validate(tt.input)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWrapValidationError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error returns nil",
			err:      nil,
			expected: false,
		},
		{
			name:     "wraps validation error",
			err:      assert.AnError,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WrapValidationError(tt.err)
			if tt.expected {
				assert.Error(t, result)
				assert.Contains(t, result.Error(), "invalid input")
			} else {
				assert.NoError(t, result)
			}
		})
	}
}

func TestWrapValidationError_IsInvalidInput(t *testing.T) {
	err := WrapValidationError(errors.New("customer_name: cannot be blank"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "customer_name")
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		shouldErr bool
	}{
		{name: "event type", input: "ORDER_CONFIRMED", shouldErr: false},
		{name: "with digits", input: "STEP_2", shouldErr: false},
		{name: "lower case", input: "order_confirmed", shouldErr: true},
		{name: "dash", input: "ORDER-CONFIRMED", shouldErr: true},
		{name: "space", input: "ORDER CONFIRMED", shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Identifier.Validate(tt.input)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPositiveDecimal(t *testing.T) {
	positive := decimal.RequireFromString("99.99")

	tests := []struct {
		name      string
		input     interface{}
		shouldErr bool
	}{
		{name: "positive", input: positive, shouldErr: false},
		{name: "positive pointer", input: &positive, shouldErr: false},
		{name: "zero", input: decimal.Zero, shouldErr: true},
		{name: "negative", input: decimal.RequireFromString("-1"), shouldErr: true},
		{name: "nil pointer", input: (*decimal.Decimal)(nil), shouldErr: true},
		{name: "wrong type", input: 10.5, shouldErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PositiveDecimal.Validate(tt.input)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMaxDecimalPlaces(t *testing.T) {
	rule := MaxDecimalPlaces(2)

	assert.NoError(t, rule.Validate(decimal.RequireFromString("100.50")))
	assert.NoError(t, rule.Validate(decimal.RequireFromString("3")))
	assert.Error(t, rule.Validate(decimal.RequireFromString("1.005")))
	assert.Error(t, rule.Validate("1.00"))
}
