// Package validation provides common validation utilities for configuration
// parameters across the gotally library.
//
// Bucket builders, scope options and the YAML configuration layer use these
// helpers so that every rejected parameter surfaces as a
// errors.ValidationError with a consistent message.
package validation
