package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseCall,
				Kind:   KindNativeFault,
				Op:     "daemon_connect_robot",
				Detail: "trap",
			},
			contains: []string{"[call]", "native_fault", "in daemon_connect_robot", "trap"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseMarshal,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[marshal]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseDispatch,
				Kind:   KindCallbackFault,
				Detail: "handler failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[dispatch]", "callback_fault", "handler failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseCall,
		Kind:  KindNativeFault,
		Cause: cause,
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
}

func TestError_Is(t *testing.T) {
	err := StaleToken(0x10001)

	if !errors.Is(err, &Error{Phase: PhaseDispatch, Kind: KindStaleToken}) {
		t.Error("Is should match same phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseCall, Kind: KindStaleToken}) {
		t.Error("Is should not match different phase")
	}
	if errors.Is(err, &Error{Phase: PhaseDispatch, Kind: KindUnknownToken}) {
		t.Error("Is should not match different kind")
	}
}

func TestHasKind(t *testing.T) {
	fault := CallbackFault(7, OutOfBounds(PhaseMarshal, 10, 20, 16))
	wrapped := fmt.Errorf("deliver: %w", fault)
	joined := errors.Join(errors.New("other"), wrapped)

	tests := []struct {
		err  error
		kind Kind
		want bool
	}{
		{fault, KindCallbackFault, true},
		{fault, KindOutOfBounds, true},
		{wrapped, KindOutOfBounds, true},
		{joined, KindCallbackFault, true},
		{joined, KindClosed, false},
		{nil, KindClosed, false},
		{errors.New("plain"), KindClosed, false},
	}

	for i, tt := range tests {
		if got := HasKind(tt.err, tt.kind); got != tt.want {
			t.Errorf("case %d: HasKind(%v, %s) = %v, want %v", i, tt.err, tt.kind, got, tt.want)
		}
	}
}

func TestIsPhase(t *testing.T) {
	inbound := Wrap(PhaseDispatch, KindCallbackFault, NativeCall("x", nil), "during call")
	if !IsPhase(fmt.Errorf("deliver: %w", inbound), PhaseDispatch) {
		t.Error("outermost phase should be dispatch")
	}
	if IsPhase(inbound, PhaseCall) {
		t.Error("inner phase must not match")
	}
	if IsPhase(errors.New("plain"), PhaseCall) {
		t.Error("plain errors have no phase")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDispatch, KindStaleToken).
		Op("daemon_deliver").
		Value(uint32(42)).
		Cause(cause).
		Detail("token %d reused after %s", 42, "release").
		Build()

	if err.Phase != PhaseDispatch {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDispatch)
	}
	if err.Kind != KindStaleToken {
		t.Errorf("Kind = %v, want %v", err.Kind, KindStaleToken)
	}
	if err.Op != "daemon_deliver" {
		t.Errorf("Op = %v, want daemon_deliver", err.Op)
	}
	if err.Value != uint32(42) {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "token 42 reused after release" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
	}{
		{"UnknownToken", UnknownToken(1), PhaseDispatch, KindUnknownToken},
		{"StaleToken", StaleToken(1), PhaseDispatch, KindStaleToken},
		{"CallbackFault", CallbackFault(1, errors.New("x")), PhaseDispatch, KindCallbackFault},
		{"Exhausted", Exhausted(10), PhaseRegister, KindExhausted},
		{"OutOfBounds", OutOfBounds(PhaseMarshal, 1, 2, 3), PhaseMarshal, KindOutOfBounds},
		{"AllocationFailed", AllocationFailed(1024, nil), PhaseCall, KindAllocation},
		{"NativeCall", NativeCall("daemon_new", errors.New("trap")), PhaseCall, KindNativeFault},
		{"NativeFault", NativeFault("robot_set_led_color", 3), PhaseCall, KindNativeFault},
		{"NullHandle", NullHandle("daemon_get_robot"), PhaseCall, KindNativeFault},
		{"TypeMismatch", TypeMismatch("daemon_new", "arity"), PhaseCall, KindTypeMismatch},
		{"Closed", Closed("bridge"), PhaseBridge, KindClosed},
		{"NotInitialized", NotInitialized(PhaseBridge, "daemon"), PhaseBridge, KindNotInitialized},
		{"NotFound", NotFound(PhaseLoad, "export", "malloc"), PhaseLoad, KindNotFound},
		{"InvalidInput", InvalidInput(PhaseConfig, "bad"), PhaseConfig, KindInvalidInput},
		{"InvalidData", InvalidData(PhaseTransport, "bad"), PhaseTransport, KindInvalidData},
		{"Instantiation", Instantiation(nil), PhaseLoad, KindInstantiation},
		{"Load", Load("compile", nil), PhaseLoad, KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("Phase = %v, want %v", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
		})
	}

	t.Run("AllocationFailed detail", func(t *testing.T) {
		err := AllocationFailed(1024, nil)
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("NativeFault value", func(t *testing.T) {
		err := NativeFault("robot_set_led_color", 9)
		if err.Value != int32(9) {
			t.Errorf("Value = %v, want 9", err.Value)
		}
	})
}

func TestMissingExportsError(t *testing.T) {
	t.Run("sorted with reasons", func(t *testing.T) {
		err := NewMissingExportsError(map[string]string{
			"malloc":              "",
			"daemon_get_robot":    "expects 3 params, has 2",
			"robot_set_led_color": "",
		})
		if len(err.Exports) != 3 {
			t.Fatalf("expected 3 exports, got %d", len(err.Exports))
		}
		if err.Exports[0].Name != "daemon_get_robot" {
			t.Errorf("first export = %q, want daemon_get_robot", err.Exports[0].Name)
		}

		msg := err.Error()
		for _, want := range []string{"3 required export", "malloc", "expects 3 params, has 2"} {
			if !strings.Contains(msg, want) {
				t.Errorf("error %q should contain %q", msg, want)
			}
		}
	})

	t.Run("empty exports", func(t *testing.T) {
		err := NewMissingExportsError(nil)
		if !strings.Contains(err.Error(), "no exports specified") {
			t.Errorf("empty error should have specific message, got: %s", err.Error())
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		err := NewMissingExportsError(map[string]string{"free": ""})
		if !errors.Is(err, &MissingExportsError{}) {
			t.Error("errors.Is should match MissingExportsError")
		}
	})
}
