package validator

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// ValidationError is one failed rule. Field is a path into the validated
// document, e.g. "workers[0].tubes[1]".
type ValidationError struct {
	Field   string         `json:"field"`
	Message string         `json:"message"`
	Rule    string         `json:"rule"`
	Params  map[string]any `json:"params,omitempty"`
}

// ValidationErrors is the error returned when one or more rules fail.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	for i, e := range ve {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(e.Field)
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (ve *ValidationErrors) Add(err ValidationError) {
	*ve = append(*ve, err)
}

func (ve ValidationErrors) Has(field string) bool {
	return slices.ContainsFunc(ve, func(e ValidationError) bool { return e.Field == field })
}

// Get returns the messages recorded for field in insertion order.
func (ve ValidationErrors) Get(field string) []string {
	var out []string
	for _, e := range ve {
		if e.Field == field {
			out = append(out, e.Message)
		}
	}
	return out
}

// Fields returns the distinct failing fields in first-seen order.
func (ve ValidationErrors) Fields() []string {
	var out []string
	for _, e := range ve {
		if !slices.Contains(out, e.Field) {
			out = append(out, e.Field)
		}
	}
	return out
}

func (ve ValidationErrors) IsEmpty() bool {
	return len(ve) == 0
}

// Rule pairs a check with the error reported when it fails.
type Rule struct {
	Check func() bool
	Error ValidationError
}

// Collect runs rules and appends every failure to errs.
func Collect(errs *ValidationErrors, rules ...Rule) {
	for _, r := range rules {
		if !r.Check() {
			errs.Add(r.Error)
		}
	}
}

// Apply runs every rule and returns all failures as ValidationErrors, or nil.
func Apply(rules ...Rule) error {
	var errs ValidationErrors
	Collect(&errs, rules...)
	if errs.IsEmpty() {
		return nil
	}
	return errs
}

// ExtractValidationErrors returns the ValidationErrors wrapped in err, if any.
func ExtractValidationErrors(err error) ValidationErrors {
	var ve ValidationErrors
	if err != nil && errors.As(err, &ve) {
		return ve
	}
	return nil
}

func IsValidationError(err error) bool {
	return ExtractValidationErrors(err) != nil
}

// Path joins a parent field path with a child key or index.
//
//	Path("workers", 0)          // "workers[0]"
//	Path("workers[0]", "tubes") // "workers[0].tubes"
func Path(parent string, child any) string {
	switch c := child.(type) {
	case int:
		return parent + "[" + strconv.Itoa(c) + "]"
	case string:
		if parent == "" {
			return c
		}
		return parent + "." + c
	default:
		return Path(parent, fmt.Sprint(c))
	}
}
