// Package validator builds declarative validation rules and aggregates every
// failure into a single ValidationErrors value.
//
// A Rule pairs a Check function with the ValidationError reported when the
// check fails. Apply evaluates a flat list of rules; Collect appends failures
// to an existing list, which is how nested documents (such as a worker fleet
// configuration) are validated field by field with Path-built field names.
//
//	var errs validator.ValidationErrors
//	validator.Collect(&errs,
//	    validator.MinLenSlice("workers", cfg.Workers, 1),
//	    validator.When(port != 0, validator.InRange("connection.port", port, 1, 65535)),
//	)
//	if !errs.IsEmpty() {
//	    return errs
//	}
//
// ValidationErrors implements error; ExtractValidationErrors and
// IsValidationError recover it from wrapped errors.
package validator
