package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// Custom validator instance
	validate = validator.New()

	// Regex patterns for validation
	tickerPattern   = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Display modes accepted by the "mode" tag, lower-cased.
var displayModes = map[string]bool{
	"usd": true,
	"eur": true,
	"1h":  true,
	"24h": true,
	"7d":  true,
}

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
	validate.RegisterValidation("currency", validateCurrency)
	validate.RegisterValidation("mode", validateMode)
}

// validateTicker validates ticker symbol format
func validateTicker(fl validator.FieldLevel) bool {
	ticker, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return tickerPattern.MatchString(ticker)
}

func validateCurrency(fl validator.FieldLevel) bool {
	cur, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return currencyPattern.MatchString(cur)
}

// validateMode accepts the widget display modes, case-insensitive.
func validateMode(fl validator.FieldLevel) bool {
	mode, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return IsDisplayMode(mode)
}

// IsDisplayMode reports whether s names a supported display mode.
func IsDisplayMode(s string) bool {
	return displayModes[strings.ToLower(s)]
}

// IsTicker reports whether s is a well-formed uppercase ticker symbol.
func IsTicker(s string) bool {
	return tickerPattern.MatchString(s)
}

// ValidateStruct validates a struct using tags
func ValidateStruct(s interface{}) ValidationErrors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ValidationErrors{{Field: "struct", Message: err.Error()}}
	}

	var errors ValidationErrors
	for _, err := range fieldErrs {
		field := err.Field()
		errors = append(errors, ValidationError{
			Field:   field,
			Message: getErrorMessage(field, err.Tag(), err.Param()),
			Value:   err.Value(),
		})
	}

	return errors
}

// getErrorMessage returns a user-friendly error message
func getErrorMessage(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "ticker":
		return fmt.Sprintf("%s must be a valid ticker symbol (1-10 uppercase letters/numbers)", field)
	case "currency":
		return fmt.Sprintf("%s must be a three-letter currency code", field)
	case "mode":
		return fmt.Sprintf("%s must be one of USD, EUR, 1h, 24h, 7d", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 { // Keep tab, newline, carriage return
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// NormalizeSymbol sanitizes a user-supplied coin attribute and upper-cases it.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(SanitizeString(s))
}
