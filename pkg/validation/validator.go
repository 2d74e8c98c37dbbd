package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// QuoteSuffix marks markets quoted in Tether.
const QuoteSuffix = "USDT"

var (
	// Custom validator instance
	validate = validator.New()

	tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,20}$`)
)

// ValidationError represents a validation error with field and message
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

func init() {
	validate.RegisterValidation("ticker", validateTicker)
	validate.RegisterValidation("usdtpair", validateUSDTPair)
}

// validateTicker validates ticker symbol format
func validateTicker(fl validator.FieldLevel) bool {
	ticker, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return tickerPattern.MatchString(ticker)
}

// validateUSDTPair accepts an uppercase ticker with a non-empty base asset quoted in USDT.
func validateUSDTPair(fl validator.FieldLevel) bool {
	pair, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return IsUSDTPair(pair)
}

// IsUSDTPair reports whether s is a well-formed USDT market such as "ETHUSDT".
func IsUSDTPair(s string) bool {
	return tickerPattern.MatchString(s) &&
		strings.HasSuffix(s, QuoteSuffix) &&
		len(s) > len(QuoteSuffix)
}

// ValidateStruct validates a struct using tags
func ValidateStruct(s interface{}) ValidationErrors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationErrors{{Field: "struct", Message: err.Error()}}
	}

	var out ValidationErrors
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: getErrorMessage(fe.Field(), fe.Tag(), fe.Param()),
			Value:   fe.Value(),
		})
	}
	return out
}

// ValidateVar validates a single value against a tag expression.
func ValidateVar(field string, v interface{}, tag string) ValidationErrors {
	err := validate.Var(v, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationErrors{{Field: field, Message: err.Error()}}
	}
	var out ValidationErrors
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   field,
			Message: getErrorMessage(field, fe.Tag(), fe.Param()),
			Value:   v,
		})
	}
	return out
}

// getErrorMessage returns a user-friendly error message
func getErrorMessage(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "ticker":
		return fmt.Sprintf("%s must be a valid ticker symbol (1-20 uppercase letters/numbers)", field)
	case "usdtpair":
		return fmt.Sprintf("%s must be a USDT-quoted market such as BTCUSDT", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}

// SanitizeString removes potentially dangerous characters
func SanitizeString(s string) string {
	// Remove null bytes and control characters
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 { // Keep tab, newline, carriage return
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}
