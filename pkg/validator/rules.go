package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// RequiredString validates that a string is not empty after trimming whitespace.
func RequiredString(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return strings.TrimSpace(value) != ""
		},
		Error: ValidationError{
			Field:   field,
			Message: "field is required",
			Rule:    "required",
		},
	}
}

func MaxLenString(field, value string, max int) Rule {
	return Rule{
		Check: func() bool {
			return len(value) <= max
		},
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at most %d characters long", max),
			Rule:    "max_length",
			Params:  map[string]any{"max": max},
		},
	}
}

// NoWhitespace validates that a string contains no whitespace characters.
func NoWhitespace(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return strings.IndexFunc(value, unicode.IsSpace) < 0
		},
		Error: ValidationError{
			Field:   field,
			Message: "must not contain whitespace characters",
			Rule:    "no_whitespace",
		},
	}
}

// Matches validates value against a precompiled pattern.
// Empty values never match.
func Matches(field, value string, re *regexp.Regexp, description string) Rule {
	return Rule{
		Check: func() bool {
			return value != "" && re.MatchString(value)
		},
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be a valid %s", description),
			Rule:    "pattern",
			Params:  map[string]any{"pattern": re.String()},
		},
	}
}

// InRange validates min <= value <= max.
func InRange[T Numeric](field string, value, min, max T) Rule {
	return Rule{
		Check: func() bool {
			return value >= min && value <= max
		},
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %v and %v", min, max),
			Rule:    "range",
			Params:  map[string]any{"min": min, "max": max},
		},
	}
}

func MinLenSlice[T any](field string, value []T, min int) Rule {
	return Rule{
		Check: func() bool {
			return len(value) >= min
		},
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must have at least %d items", min),
			Rule:    "min_items",
			Params:  map[string]any{"min": min},
		},
	}
}

// When returns rule if cond holds and a rule that always passes otherwise.
// Used for optional fields that are validated only when set.
func When(cond bool, rule Rule) Rule {
	if cond {
		return rule
	}
	return Rule{Check: func() bool { return true }}
}
