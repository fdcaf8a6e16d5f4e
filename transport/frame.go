// Package transport links a daemon to its server over a byte stream.
//
// Each frame is a 4-byte big-endian payload length followed by the payload.
// One frame carries one daemon write or one inbound delivery.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/wippyai/robot-bridge/errors"
)

// MaxFrame is the default and largest accepted payload size.
const MaxFrame = 1 << 20

const headerLength = 4

// WriteFrame writes payload as one frame. Payloads above max are refused.
func WriteFrame(w io.Writer, payload []byte, max int) error {
	if len(payload) > max {
		return errors.New(errors.PhaseTransport, errors.KindInvalidInput).
			Detail("frame of %d bytes exceeds maximum %d", len(payload), max).
			Value(len(payload)).
			Build()
	}

	buf := make([]byte, headerLength+len(payload))
	binary.BigEndian.PutUint32(buf[:headerLength], uint32(len(payload)))
	copy(buf[headerLength:], payload)
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(errors.PhaseTransport, errors.KindInvalidData, err, "write frame")
	}
	return nil
}

// ReadFrame reads one frame. A length above max fails closed before any
// payload byte is read. A clean end of stream returns io.EOF.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	var header [headerLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(errors.PhaseTransport, errors.KindInvalidData, err, "read frame header")
	}

	length := binary.BigEndian.Uint32(header[:])
	if uint64(length) > uint64(max) {
		return nil, errors.New(errors.PhaseTransport, errors.KindInvalidData).
			Detail("frame length %d exceeds maximum %d", length, max).
			Value(length).
			Build()
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, errors.Wrap(errors.PhaseTransport, errors.KindInvalidData, err,
				fmt.Sprintf("read frame payload (%d bytes)", length))
		}
	}
	return payload, nil
}
