package errors

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad       Phase = "load"       // module loading and instantiation
	PhaseFilesystem Phase = "filesystem" // private filesystem staging
	PhaseOptions    Phase = "options"    // option validation
	PhaseInvoke     Phase = "invoke"     // crossing the host/guest boundary
	PhaseFetch      Phase = "fetch"      // remote include loading
	PhaseCleanup    Phase = "cleanup"    // transient file removal
	PhaseRuntime    Phase = "runtime"    // everything else
)

// Kind categorizes the error
type Kind string

const (
	KindNotInitialized Kind = "not_initialized"
	KindInstantiation  Kind = "instantiation"
	KindMissingExport  Kind = "missing_export"
	KindAllocation     Kind = "allocation"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidInput   Kind = "invalid_input"
	KindIO             Kind = "io"
	KindTrap           Kind = "trap"
	KindExit           Kind = "exit"
	KindClosed         Kind = "closed"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Path   string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the affected guest path
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Lifecycle creates a module load failure. Every caller waiting on the same
// initialization attempt receives this same value.
func Lifecycle(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Detail: detail,
		Cause:  cause,
	}
}

// Filesystem creates a staging failure for op on path
func Filesystem(op, path string, cause error) *Error {
	return &Error{
		Phase:  PhaseFilesystem,
		Kind:   KindIO,
		Path:   path,
		Detail: op,
		Cause:  cause,
	}
}

// Invocation creates a boundary crossing failure
func Invocation(kind Kind, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingExport creates an error for a required guest export that is absent
func MissingExport(name string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindMissingExport,
		Detail: fmt.Sprintf("module does not export %q", name),
		Value:  name,
	}
}

// AllocationFailed creates a guest allocation failure error
func AllocationFailed(size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Value:  size,
		Cause:  cause,
	}
}

// OutOfBounds creates a guest memory access error
func OutOfBounds(offset, length uint32) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("offset %d length %d outside guest memory", offset, length),
		Value:  offset,
	}
}

// NotInitialized creates a not-initialized error for a missing module/instance
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// Closed creates an error for use after Close
func Closed(component string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", component),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// FetchFailure records a single include that could not be fetched or staged
type FetchFailure struct {
	Name  string
	Cause error
}

// PartialFetchError is returned when one or more remote includes failed.
// Includes that were fetched successfully are already staged.
type PartialFetchError struct {
	Failures []FetchFailure
	Total    int
}

// NewPartialFetchError creates an error from the failures of a fetch of total files
func NewPartialFetchError(total int, failures []FetchFailure) *PartialFetchError {
	return &PartialFetchError{
		Failures: failures,
		Total:    total,
	}
}

// Failed returns the number of includes that failed
func (e *PartialFetchError) Failed() int {
	return len(e.Failures)
}

// Unwrap exposes the per-file causes aggregated into a single error
func (e *PartialFetchError) Unwrap() error {
	var merr *multierror.Error
	for _, f := range e.Failures {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", f.Name, f.Cause))
	}
	return merr.ErrorOrNil()
}

func (e *PartialFetchError) Error() string {
	if len(e.Failures) == 0 {
		return "[fetch] partial: no failures recorded"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[fetch] partial: %d of %d include(s) failed:", len(e.Failures), e.Total))
	for _, f := range e.Failures {
		b.WriteString("\n  - ")
		b.WriteString(f.Name)
		if f.Cause != nil {
			b.WriteString(": ")
			b.WriteString(f.Cause.Error())
		}
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *PartialFetchError) Is(target error) bool {
	_, ok := target.(*PartialFetchError)
	return ok
}
