// Package errors provides structured error types for the wasm-pawnc library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the affected guest path, a detail message and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseFilesystem, errors.KindIO).
//		Path("/include/core.inc").
//		Detail("mkdir %s", dir).
//		Cause(err).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Filesystem("write", "/input.pwn", cause)
//	err := errors.Lifecycle("instantiate module", cause)
//
// Only infrastructure failures are errors. A source file that fails to compile
// is a normal result, never an error value.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
