// Package validation implements the per-field checkout form validators.
// Each validator is a pure function returning a Result; an invalid Result
// always carries a message and a valid one never does.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result is the verdict for a single field value.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

func valid() Result {
	return Result{Valid: true}
}

func invalid(message string) Result {
	return Result{Valid: false, Message: message}
}

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Email checks for a non-empty, loosely well-formed email address.
func Email(value string) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return invalid("Email is required")
	}
	if !emailPattern.MatchString(trimmed) {
		return invalid("Please enter a valid email address")
	}
	return valid()
}

// Password checks for a non-empty password of at least 8 characters.
func Password(value string) Result {
	if value == "" {
		return invalid("Password is required")
	}
	if len(value) < 8 {
		return invalid("Password must be at least 8 characters")
	}
	return valid()
}

// Required checks that the value trims to non-empty. The field name is used
// in the error message.
func Required(value, fieldName string) Result {
	if strings.TrimSpace(value) == "" {
		return invalid(fmt.Sprintf("%s is required", fieldName))
	}
	return valid()
}

// CardNumber checks a card number after stripping spaces and hyphens:
// digits only, length between 13 and 19.
func CardNumber(value string) Result {
	stripped := strings.NewReplacer(" ", "", "-", "").Replace(value)
	if stripped == "" {
		return invalid("Card number is required")
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return invalid("Card number must contain only digits")
		}
	}
	if len(stripped) < 13 || len(stripped) > 19 {
		return invalid("Card number must be 13-19 digits")
	}
	return valid()
}

// ExpirationMonth checks that the value parses as an integer in [1, 12].
func ExpirationMonth(value string) Result {
	if value == "" {
		return invalid("Month is required")
	}
	month, err := strconv.Atoi(value)
	if err != nil || month < 1 || month > 12 {
		return invalid("Invalid month (01-12)")
	}
	return valid()
}

// ExpirationYear checks a two-digit year against the current year via the
// given clock. There is no upper bound; any two-digit year at or after the
// current year mod 100 is accepted.
func ExpirationYear(value string, now func() time.Time) Result {
	if value == "" {
		return invalid("Year is required")
	}
	if len(value) != 2 {
		return invalid("Invalid year format (YY)")
	}
	year, err := strconv.Atoi(value)
	if err != nil {
		return invalid("Invalid year format (YY)")
	}
	if year < now().Year()%100 {
		return invalid("Card has expired")
	}
	return valid()
}

// CVC checks for exactly 3 or 4 digits.
func CVC(value string) Result {
	if value == "" {
		return invalid("CVC is required")
	}
	if len(value) != 3 && len(value) != 4 {
		return invalid("CVC must be 3 or 4 digits")
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return invalid("CVC must be 3 or 4 digits")
		}
	}
	return valid()
}

// Postcode checks that the value trims to at least 3 characters.
func Postcode(value string) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return invalid("Postcode is required")
	}
	if len(trimmed) < 3 {
		return invalid("Please enter a valid postcode")
	}
	return valid()
}
