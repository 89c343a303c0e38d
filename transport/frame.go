// File: transport/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RPC frame codec: a length-prefixed wire format carrying a RequestID,
// a status byte, and a payload. Structurally grounded on the teacher's
// core/protocol/frame_codec.go (fixed header, explicit max-payload guard
// against resource exhaustion), redesigned here for the RPC message
// boundary (requestID + status + payload) instead of WebSocket framing,
// per spec.md's "wire-format design beyond the message boundary" being a
// pluggable collaborator rather than this package's concern.

package transport

import (
	"encoding/binary"
	"errors"

	"github.com/jupiter-go/jupiter/api"
)

// MaxFramePayload bounds a single frame's payload, protecting against
// resource exhaustion from a malicious or corrupt peer.
const MaxFramePayload = 16 << 20 // 16 MiB

// frame wire layout: [4-byte total length][1-byte status][2-byte
// requestID length][requestID bytes][payload bytes]. total length covers
// everything after itself.
const frameHeaderMin = 1 + 2

// EncodeFrame serializes env into the wire frame format.
func EncodeFrame(env api.ResponseEnvelope) ([]byte, error) {
	idBytes := []byte(env.RequestID)
	if len(idBytes) > 0xFFFF {
		return nil, errors.New("transport: request id too long to frame")
	}
	if len(env.Bytes) > MaxFramePayload {
		return nil, errors.New("transport: frame payload exceeds maximum allowed size")
	}

	body := make([]byte, frameHeaderMin+len(idBytes)+len(env.Bytes))
	body[0] = byte(env.Status)
	binary.BigEndian.PutUint16(body[1:3], uint16(len(idBytes)))
	copy(body[3:3+len(idBytes)], idBytes)
	copy(body[3+len(idBytes):], env.Bytes)

	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

// DecodeFrame parses one complete frame body (length prefix already
// consumed by the caller's framing reader) into a ResponseEnvelope.
func DecodeFrame(body []byte) (api.ResponseEnvelope, error) {
	if len(body) < frameHeaderMin {
		return api.ResponseEnvelope{}, errors.New("transport: frame too short")
	}
	status := api.Status(body[0])
	idLen := int(binary.BigEndian.Uint16(body[1:3]))
	if len(body) < frameHeaderMin+idLen {
		return api.ResponseEnvelope{}, errors.New("transport: frame too short for request id")
	}
	id := api.RequestID(body[3 : 3+idLen])
	payload := body[3+idLen:]

	return api.ResponseEnvelope{
		RequestID: id,
		Status:    status,
		Bytes:     payload,
	}, nil
}

// FrameLengthSize is the fixed-size length prefix every frame begins
// with; a Decoder reads this many bytes first to learn how much more to
// buffer before calling DecodeFrame.
const FrameLengthSize = 4

// ReadFrameLength decodes the 4-byte big-endian length prefix.
func ReadFrameLength(prefix []byte) (uint32, error) {
	if len(prefix) != FrameLengthSize {
		return 0, errors.New("transport: bad length prefix size")
	}
	n := binary.BigEndian.Uint32(prefix)
	if n > MaxFramePayload+frameHeaderMin+0xFFFF {
		return 0, errors.New("transport: frame length exceeds maximum allowed size")
	}
	return n, nil
}
