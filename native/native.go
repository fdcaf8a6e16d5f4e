package native

import (
	"context"
	"fmt"
	"strings"

	robotbridge "github.com/wippyai/robot-bridge"
	"github.com/wippyai/robot-bridge/callback"
	"github.com/wippyai/robot-bridge/errors"
)

// Operation is the exported name of a native function.
type Operation string

const (
	OpCreateDaemon     Operation = "daemon_new"
	OpSetWriteCallback Operation = "daemon_set_write_callback"
	OpDeliver          Operation = "daemon_deliver"
	OpGetRobot         Operation = "daemon_get_robot"
	OpConnectRobot     Operation = "daemon_connect_robot"
	OpSetLedColor      Operation = "robot_set_led_color"
)

// DaemonHandle is the opaque native daemon instance.
type DaemonHandle uint32

// RobotHandle is the opaque native handle of one robot connection.
type RobotHandle uint32

// Kind is the type of a native argument or result.
type Kind uint8

const (
	KindNone Kind = iota
	KindDaemon
	KindRobot
	KindU8
	KindI32
	KindString
	KindBytes
	KindToken
)

var kindNames = [...]string{"none", "daemon", "robot", "u8", "i32", "string", "bytes", "token"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Width returns the number of core parameters the kind occupies.
func (k Kind) Width() int {
	switch k {
	case KindNone:
		return 0
	case KindString, KindBytes:
		return 2
	default:
		return 1
	}
}

// Arg is one typed native argument.
type Arg struct {
	Bytes  []byte
	Scalar uint32
	Kind   Kind
}

func Daemon(h DaemonHandle) Arg { return Arg{Kind: KindDaemon, Scalar: uint32(h)} }
func Robot(h RobotHandle) Arg   { return Arg{Kind: KindRobot, Scalar: uint32(h)} }
func U8(v uint8) Arg            { return Arg{Kind: KindU8, Scalar: uint32(v)} }
func I32(v int32) Arg           { return Arg{Kind: KindI32, Scalar: uint32(v)} }
func String(s string) Arg       { return Arg{Kind: KindString, Bytes: []byte(s)} }
func Bytes(b []byte) Arg        { return Arg{Kind: KindBytes, Bytes: b} }

// Token passes a callback token as the native-callable identifier.
func Token(t callback.Token) Arg { return Arg{Kind: KindToken, Scalar: uint32(t)} }

// Signature is the declared parameter and result kinds of an operation.
type Signature struct {
	Params []Kind
	Result Kind
}

// CoreParams returns the number of core parameters after flattening.
func (s Signature) CoreParams() int {
	n := 0
	for _, k := range s.Params {
		n += k.Width()
	}
	return n
}

// CoreResults returns the number of core results.
func (s Signature) CoreResults() int {
	return s.Result.Width()
}

func (s Signature) String() string {
	parts := make([]string, len(s.Params))
	for i, k := range s.Params {
		parts[i] = k.String()
	}
	return "(" + strings.Join(parts, ", ") + ") -> " + s.Result.String()
}

// Signatures is the native call table.
var Signatures = map[Operation]Signature{
	OpCreateDaemon:     {Result: KindDaemon},
	OpSetWriteCallback: {Params: []Kind{KindDaemon, KindToken}},
	OpDeliver:          {Params: []Kind{KindDaemon, KindBytes}},
	OpGetRobot:         {Params: []Kind{KindDaemon, KindString}, Result: KindRobot},
	OpConnectRobot:     {Params: []Kind{KindDaemon, KindRobot, KindString, KindToken}},
	OpSetLedColor:      {Params: []Kind{KindRobot, KindU8, KindU8, KindU8, KindToken}},
}

// Check validates args against the signature of op.
func Check(op Operation, args []Arg) (Signature, error) {
	sig, ok := Signatures[op]
	if !ok {
		return Signature{}, errors.NotFound(errors.PhaseCall, "operation", string(op))
	}
	if len(args) != len(sig.Params) {
		return sig, errors.TypeMismatch(string(op),
			fmt.Sprintf("expected %d arguments, got %d", len(sig.Params), len(args)))
	}
	for i, a := range args {
		if a.Kind != sig.Params[i] {
			return sig, errors.TypeMismatch(string(op),
				fmt.Sprintf("argument %d: expected %s, got %s", i, sig.Params[i], a.Kind))
		}
	}
	return sig, nil
}

// Gateway performs marshaled calls into the native component. It is the only
// component that crosses the native boundary; inbound invocations are routed
// to the callback.Dispatcher it was built with.
type Gateway interface {
	// Invoke calls op and returns its raw result (0 for operations without one).
	Invoke(ctx context.Context, op Operation, args ...Arg) (uint64, error)

	// Memory returns the native linear memory for marshaling inbound buffers.
	Memory() robotbridge.Memory
}

// Inbound host import names, in the "bridge" import module.
const (
	HostModule   = "bridge"
	HostDispatch = "dispatch"
	HostReject   = "reject"
	HostLog      = "log"
)

// Exports the native module must provide besides the operations.
const (
	ExportMemory = "memory"
	ExportMalloc = "malloc"
	ExportFree   = "free"
)

// Dispatch status codes returned to the native side.
const (
	StatusOK    = 0
	StatusFault = 1
)
