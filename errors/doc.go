// Package errors provides structured error types for the robot bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the native operation, a detail message, the offending value
// and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDispatch, errors.KindStaleToken).
//		Op("daemon_deliver").
//		Value(token).
//		Detail("token already released").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownToken(token)
//	err := errors.OutOfBounds(errors.PhaseMarshal, ptr, length, size)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
