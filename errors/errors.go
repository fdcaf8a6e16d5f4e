package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad      Phase = "load"      // module compilation and export checks
	PhaseCall      Phase = "call"      // host to native calls
	PhaseDispatch  Phase = "dispatch"  // native to host invocations
	PhaseMarshal   Phase = "marshal"   // buffer copies
	PhaseRegister  Phase = "register"  // callback registration
	PhaseBridge    Phase = "bridge"    // facade operations
	PhaseConfig    Phase = "config"    // configuration
	PhaseTransport Phase = "transport" // daemon server link
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindAllocation     Kind = "allocation"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindInvalidInput   Kind = "invalid_input"
	KindInstantiation  Kind = "instantiation"
	KindMissingExport  Kind = "missing_export"
	KindUnknownToken   Kind = "unknown_token"
	KindStaleToken     Kind = "stale_token"
	KindExhausted      Kind = "exhausted"
	KindNativeFault    Kind = "native_fault"
	KindCallbackFault  Kind = "callback_fault"
	KindClosed         Kind = "closed"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
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

// HasKind reports whether err is, or wraps, an *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				if HasKind(inner, kind) {
					return true
				}
			}
			return false
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return false
		}
	}
	return false
}

// IsPhase reports whether the outermost *Error in err's chain has the given phase.
func IsPhase(err error, phase Phase) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Phase == phase
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
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

// Op sets the native operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
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

// UnknownToken reports a dispatch on a token that was never issued.
func UnknownToken(token uint32) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindUnknownToken,
		Detail: fmt.Sprintf("token %#x was never registered", token),
		Value:  token,
	}
}

// StaleToken reports a dispatch on a token whose registration was released.
func StaleToken(token uint32) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindStaleToken,
		Detail: fmt.Sprintf("token %#x already released", token),
		Value:  token,
	}
}

// CallbackFault wraps an error returned (or panic raised) by a callback closure.
func CallbackFault(token uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindCallbackFault,
		Detail: fmt.Sprintf("callback %#x failed", token),
		Value:  token,
		Cause:  cause,
	}
}

// Exhausted reports that no callback slot is available.
func Exhausted(limit int) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindExhausted,
		Detail: fmt.Sprintf("all %d callback slots in use", limit),
	}
}

// OutOfBounds creates an out of bounds error for a native memory region
func OutOfBounds(phase Phase, ptr, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("region [%d, %d+%d) exceeds memory size %d", ptr, ptr, length, size),
		Value:  ptr,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Cause:  cause,
	}
}

// NativeCall reports a failed native call (trap, missing export, bad result).
func NativeCall(op string, cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindNativeFault,
		Op:     op,
		Detail: "native call failed",
		Cause:  cause,
	}
}

// NativeFault reports a failure code signalled by the native side for an async operation.
func NativeFault(op string, code int32) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindNativeFault,
		Op:     op,
		Detail: fmt.Sprintf("native side reported failure code %d", code),
		Value:  code,
	}
}

// NullHandle reports a native call that returned the null handle.
func NullHandle(op string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindNativeFault,
		Op:     op,
		Detail: "native call returned a null handle",
	}
}

// TypeMismatch reports an argument list that does not match an operation signature.
func TypeMismatch(op string, detail string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindTypeMismatch,
		Op:     op,
		Detail: detail,
	}
}

// Closed reports an operation attempted after shutdown.
func Closed(what string) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// NotInitialized creates a not-initialized error for missing module/instance
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
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

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
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

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingExport represents a single required export the native module lacks
type MissingExport struct {
	Name   string // e.g., "daemon_connect_robot"
	Reason string // empty when absent, otherwise why the export does not qualify
}

// MissingExportsError is returned when a native module does not provide the bridge ABI
type MissingExportsError struct {
	Exports []MissingExport
}

// NewMissingExportsError creates an error from export names mapped to reasons
func NewMissingExportsError(missing map[string]string) *MissingExportsError {
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &MissingExportsError{
		Exports: make([]MissingExport, 0, len(names)),
	}
	for _, name := range names {
		result.Exports = append(result.Exports, MissingExport{
			Name:   name,
			Reason: missing[name],
		})
	}
	return result
}

func (e *MissingExportsError) Error() string {
	if len(e.Exports) == 0 {
		return "[load] missing_export: no exports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("native module lacks %d required export(s):", len(e.Exports)))
	for _, exp := range e.Exports {
		b.WriteString("\n  - ")
		b.WriteString(exp.Name)
		if exp.Reason != "" {
			b.WriteString(" (")
			b.WriteString(exp.Reason)
			b.WriteByte(')')
		}
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingExportsError) Is(target error) bool {
	_, ok := target.(*MissingExportsError)
	return ok
}
