package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind classifies a decoded envelope.
type Kind int

const (
	// KindInvalid marks an envelope that fits none of the frame shapes.
	KindInvalid Kind = iota
	// KindRequest has a method and an id and expects exactly one reply.
	KindRequest
	// KindNotification has a method and no id; it is never replied to.
	KindNotification
	// KindResponse carries a result or an error for a previously issued id.
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "invalid"
	}
}

// DecodeError describes a frame that could not be turned into a valid
// envelope. It carries the wire code for the rejection reply and whatever id
// could be recovered from the malformed input.
type DecodeError struct {
	Code    int
	Message string
	ID      json.RawMessage
	cause   error
}

func (e *DecodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("decode frame: %s: %v", e.Message, e.cause)
	}
	return fmt.Sprintf("decode frame: %s", e.Message)
}

func (e *DecodeError) Unwrap() error { return e.cause }

// WireError converts the decode failure into the error object sent back to
// the peer. The local parse detail stays out of the wire form.
func (e *DecodeError) WireError() *ErrorObject {
	return &ErrorObject{Code: e.Code, Message: e.Message}
}

// Decode parses one frame into an Envelope. Malformed input is reported as a
// *DecodeError so the caller can produce a best-effort rejection reply
// without stopping the read loop.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{
			Code:    ErrParseError,
			Message: MsgParseError,
			ID:      recoverID(data),
			cause:   err,
		}
	}
	if env.JSONRPC != Version {
		return nil, &DecodeError{
			Code:    ErrInvalidRequest,
			Message: MsgInvalidRequest,
			ID:      env.ID,
		}
	}
	if env.Kind() == KindInvalid {
		return nil, &DecodeError{
			Code:    ErrInvalidRequest,
			Message: MsgInvalidRequest,
			ID:      env.ID,
		}
	}
	return &env, nil
}

// Encode serializes an outgoing frame.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// Kind reports which frame shape the envelope has. A frame with an id and a
// result or error but no method is a response; with a method and an id a
// request; with a method and no id a notification. Anything else is invalid,
// including a frame carrying only an id.
func (e *Envelope) Kind() Kind {
	hasID := len(e.ID) > 0 && !bytes.Equal(e.ID, []byte("null"))
	hasSettlement := len(e.Result) > 0 || e.Error != nil

	switch {
	case e.Method == "" && hasID && hasSettlement:
		return KindResponse
	case e.Method != "" && hasSettlement:
		return KindInvalid
	case e.Method != "" && hasID:
		return KindRequest
	case e.Method != "":
		return KindNotification
	default:
		return KindInvalid
	}
}

// recoverID does a best-effort extraction of the id from malformed input so
// the rejection reply can still be correlated by the peer.
func recoverID(data []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil
	}
	return probe.ID
}
