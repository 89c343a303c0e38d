package transport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jupiter-go/jupiter/api"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	env := api.ResponseEnvelope{RequestID: "req-123", Status: api.StatusOK, Bytes: []byte(`{"ok":true}`)}

	frame, err := EncodeFrame(env)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	n, err := ReadFrameLength(frame[:FrameLengthSize])
	if err != nil {
		t.Fatalf("ReadFrameLength: %v", err)
	}
	if int(n) != len(frame)-FrameLengthSize {
		t.Fatalf("ReadFrameLength = %d, want %d", n, len(frame)-FrameLengthSize)
	}

	got, err := DecodeFrame(frame[FrameLengthSize:])
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.RequestID != env.RequestID || got.Status != env.Status || !bytes.Equal(got.Bytes, env.Bytes) {
		t.Errorf("DecodeFrame = %+v, want %+v", got, env)
	}
}

func TestEncodeFrameStatusErrorRoundTrips(t *testing.T) {
	env := api.ResponseEnvelope{RequestID: "r", Status: api.StatusError}
	frame, err := EncodeFrame(env)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	got, err := DecodeFrame(frame[FrameLengthSize:])
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.Status != api.StatusError {
		t.Errorf("Status = %v, want StatusError", got.Status)
	}
	if len(got.Bytes) != 0 {
		t.Errorf("Bytes = %v, want empty", got.Bytes)
	}
}

func TestEncodeFrameRejectsOversizedPayload(t *testing.T) {
	env := api.ResponseEnvelope{RequestID: "r", Bytes: make([]byte, MaxFramePayload+1)}
	if _, err := EncodeFrame(env); err == nil {
		t.Error("EncodeFrame should reject a payload larger than MaxFramePayload")
	}
}

func TestEncodeFrameRejectsOversizedRequestID(t *testing.T) {
	env := api.ResponseEnvelope{RequestID: api.RequestID(strings.Repeat("x", 1<<16))}
	if _, err := EncodeFrame(env); err == nil {
		t.Error("EncodeFrame should reject a request id longer than 0xFFFF bytes")
	}
}

func TestDecodeFrameRejectsTruncatedBody(t *testing.T) {
	if _, err := DecodeFrame([]byte{0}); err == nil {
		t.Error("DecodeFrame should reject a body shorter than the fixed header")
	}
}

func TestDecodeFrameRejectsBodyShorterThanDeclaredIDLength(t *testing.T) {
	body := []byte{byte(api.StatusOK), 0, 10, 'a', 'b'} // declares a 10-byte id but supplies 2
	if _, err := DecodeFrame(body); err == nil {
		t.Error("DecodeFrame should reject a body too short for its declared request id length")
	}
}

func TestReadFrameLengthRejectsWrongPrefixSize(t *testing.T) {
	if _, err := ReadFrameLength([]byte{1, 2, 3}); err == nil {
		t.Error("ReadFrameLength should reject a prefix that isn't exactly FrameLengthSize bytes")
	}
}

func TestReadFrameLengthRejectsOversizedDeclaration(t *testing.T) {
	huge := make([]byte, FrameLengthSize)
	huge[0] = 0xFF
	huge[1] = 0xFF
	huge[2] = 0xFF
	huge[3] = 0xFF
	if _, err := ReadFrameLength(huge); err == nil {
		t.Error("ReadFrameLength should reject a declared length exceeding the maximum allowed frame size")
	}
}
