// Package diag classifies the compiler module's free-text output.
//
// Classification is deliberately best-effort and substring based, matching
// what callers of the compiler have always relied on:
//
//   - a line containing "Compilation successful!" marks success, and an
//     "AMX file size: N bytes" fragment on it sets the artifact size
//   - any line containing "error" and ":" is an error
//   - any line containing "warning" and ":" is a warning
//
// A line can therefore be both an error and a warning, and compiler prose
// that happens to contain these words is misclassified. This is a known
// limitation, kept as is because downstream consumers depend on it.
//
// ParseDiagnostic offers an additional structured view of pawncc diagnostic
// lines ("file(line) : error 017: message"). It never changes what Parse
// classifies.
package diag
