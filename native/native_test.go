package native

import (
	"testing"

	"github.com/wippyai/robot-bridge/callback"
	"github.com/wippyai/robot-bridge/errors"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		args []Arg
		kind errors.Kind
	}{
		{"create daemon", OpCreateDaemon, nil, ""},
		{"set led", OpSetLedColor, []Arg{Robot(1), U8(10), U8(20), U8(30), Token(callback.Token(0x10001))}, ""},
		{"connect", OpConnectRobot, []Arg{Daemon(16), Robot(4112), String("R1"), Token(1)}, ""},
		{"daemon for robot", OpSetLedColor, []Arg{Daemon(16), U8(1), U8(2), U8(3), Token(1)}, errors.KindTypeMismatch},
		{"robot for daemon", OpDeliver, []Arg{Robot(4112), Bytes(nil)}, errors.KindTypeMismatch},
		{"missing token", OpSetWriteCallback, []Arg{Daemon(16)}, errors.KindTypeMismatch},
		{"unknown op", Operation("daemon_free"), nil, errors.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Check(tt.op, tt.args)
			if tt.kind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.HasKind(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestSignature_CoreParams(t *testing.T) {
	tests := []struct {
		op      Operation
		params  int
		results int
	}{
		{OpCreateDaemon, 0, 1},
		{OpSetWriteCallback, 2, 0},
		{OpDeliver, 3, 0},
		{OpGetRobot, 3, 1},
		{OpConnectRobot, 5, 0},
		{OpSetLedColor, 5, 0},
	}

	for _, tt := range tests {
		sig := Signatures[tt.op]
		if got := sig.CoreParams(); got != tt.params {
			t.Errorf("%s: CoreParams = %d, want %d", tt.op, got, tt.params)
		}
		if got := sig.CoreResults(); got != tt.results {
			t.Errorf("%s: CoreResults = %d, want %d", tt.op, got, tt.results)
		}
	}
}

func TestArgConstructors(t *testing.T) {
	if a := I32(-1); a.Scalar != 0xFFFFFFFF || a.Kind != KindI32 {
		t.Errorf("I32(-1) = %+v", a)
	}
	if a := String("ZRG6"); string(a.Bytes) != "ZRG6" || a.Kind != KindString {
		t.Errorf("String = %+v", a)
	}
	if got := Signatures[OpGetRobot].String(); got != "(daemon, string) -> robot" {
		t.Errorf("signature string = %q", got)
	}
}
