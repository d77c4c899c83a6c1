// Package schema validates arbitrary decoded JSON values against JSON
// schemas, returning the complete list of violations.
//
// It wraps github.com/xeipuuv/gojsonschema behind a small API:
//
//	s, err := schema.Compile(`{"type": "object", "required": ["isbn"]}`)
//	if err != nil {
//	    return err
//	}
//	res := s.Validate(payload)
//	if !res.Valid {
//	    for _, e := range res.Errors {
//	        log.Warn("invalid payload", "field", e.Field, "reason", e.Description)
//	    }
//	}
//
// Handlers compile their configuration and payload schemas once, at
// construction, and reuse the compiled *Schema for every job.
package schema
