package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which loading stage produced the error
type Phase string

const (
	PhaseScan    Phase = "scan"    // mod folder discovery and manifest parsing
	PhaseResolve Phase = "resolve" // dependency sorting
	PhaseDecode  Phase = "decode"  // wasm binary to model
	PhaseEncode  Phase = "encode"  // model to wasm binary
	PhaseLoad    Phase = "load"    // binary graph expansion
	PhaseRewrite Phase = "rewrite" // instruction handlers
	PhaseAdmit   Phase = "admit"   // compile and instantiate in the runtime
	PhaseConfig  Phase = "config"  // settings and compatibility data
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidData     Kind = "invalid_data"
	KindInvalidInput    Kind = "invalid_input"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindNotFound        Kind = "not_found"
	KindDuplicate       Kind = "duplicate"
	KindIncompatible    Kind = "incompatible"
	KindBrokenReference Kind = "broken_reference"
	KindInstantiation   Kind = "instantiation"
	KindInvariant       Kind = "invariant"
)

// Error is the structured error type used throughout modhost
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Mod    string
	File   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Mod != "" {
		b.WriteString(" in ")
		b.WriteString(e.Mod)
	}

	if e.File != "" {
		b.WriteString(" (")
		b.WriteString(e.File)
		b.WriteByte(')')
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
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

// Path sets the location inside a binary or manifest
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Mod sets the mod display name
func (b *Builder) Mod(name string) *Builder {
	b.err.Mod = name
	return b
}

// File sets the file the error refers to
func (b *Builder) File(path string) *Builder {
	b.err.File = path
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

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
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

// Recoverable aborts loading of a single mod. The pass continues with the next mod.
type Recoverable struct {
	Err *Error
}

func (r *Recoverable) Error() string { return r.Err.Error() }
func (r *Recoverable) Unwrap() error { return r.Err }

// Fatal is an internal invariant violation that aborts the whole loading pass.
type Fatal struct {
	Err *Error
}

func (f *Fatal) Error() string { return "internal error: " + f.Err.Error() }
func (f *Fatal) Unwrap() error { return f.Err }

// ModuleFailure wraps err as a per-mod failure.
func ModuleFailure(err *Error) *Recoverable {
	return &Recoverable{Err: err}
}

// Internal builds a pass-wide fatal error.
func Internal(phase Phase, format string, args ...any) *Fatal {
	return &Fatal{Err: New(phase, KindInvariant).Detail(format, args...).Build()}
}

// IsFatal reports whether err carries a Fatal anywhere in its chain.
func IsFatal(err error) bool {
	var f *Fatal
	return stderrors.As(err, &f)
}

// AsRecoverable extracts the per-mod failure from err.
func AsRecoverable(err error) (*Recoverable, bool) {
	var r *Recoverable
	if stderrors.As(err, &r) {
		return r, true
	}
	return nil, false
}
