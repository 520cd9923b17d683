// Package errors provides the structured error type used across svgpng.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Failures reported by the renderer through its status code keep
// the raw code in Status.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindInvalidInput).
//		Path("options", "width").
//		Value(-3).
//		Detail("width must be positive").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.FromStatus(status)
//	err := errors.FontData(2)
//
// Every kind has a phase-less sentinel, so callers can write
// errors.Is(err, errors.ErrParse) without caring where it was raised.
// ClassOf tells apart "fix your input", "the document is invalid" and
// "the renderer failed".
package errors
