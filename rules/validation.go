package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	maxNameLength       = 100
	maxExpressionLength = 2000
)

// ErrInvalidRule wraps every rule validation failure.
var ErrInvalidRule = errors.New("invalid rule")

var ruleNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidateRule checks the rule fields that do not need the CEL environment.
// Expressions are type-checked separately at compile time.
func ValidateRule(r *Rule) error {
	if r == nil {
		return fmt.Errorf("%w: rule is nil", ErrInvalidRule)
	}

	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRule)
	}

	if err := validateName(r.Name); err != nil {
		return fmt.Errorf("%w: name %q: %v", ErrInvalidRule, r.Name, err)
	}

	expr := strings.TrimSpace(r.Expression)
	if expr == "" {
		return fmt.Errorf("%w: expression is required", ErrInvalidRule)
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("%w: expression length %d exceeds maximum of %d characters", ErrInvalidRule, len(expr), maxExpressionLength)
	}

	return nil
}

func validateName(name string) error {
	if len(name) == 0 {
		return errors.New("cannot be empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("length %d exceeds maximum of %d characters", len(name), maxNameLength)
	}
	if !ruleNamePattern.MatchString(name) {
		return errors.New("must start with a letter followed by letters, digits, '_' or '-'")
	}
	if isReservedName(name) {
		return fmt.Errorf("cannot use reserved word %q", name)
	}
	return nil
}

// isReservedName rejects names that read as CEL literals or fact variables.
func isReservedName(name string) bool {
	reserved := map[string]bool{
		"true":        true,
		"false":       true,
		"null":        true,
		"in":          true,
		ApplicantVar:  true,
		PredictionVar: true,
	}
	return reserved[name]
}
