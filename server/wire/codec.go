package wire

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrInvalidPayload is returned for any frame failing schema validation:
// unknown type, malformed JSON, unknown fields, or out-of-range values.
var ErrInvalidPayload = errors.New("invalid payload")

// DecodeClientFrame parses and validates one inbound frame. It returns one of
// the client frame structs (*Join, *Progress, *Result, *Forfeit, *DrawVote,
// *Ping, *Leave) or ErrInvalidPayload.
func DecodeClientFrame(raw []byte) (interface{}, error) {
	env := &Envelope{}
	if err := strictUnmarshal(raw, env); err != nil {
		return nil, ErrInvalidPayload
	}
	switch env.Type {
	case MsgJoin:
		frame := &Join{}
		if err := decodeData(env.Data, frame); err != nil {
			return nil, err
		}
		return frame, nil
	case MsgProgress:
		frame := &Progress{}
		if err := decodeData(env.Data, frame); err != nil {
			return nil, err
		}
		if frame.ProgressIndex < 0 || frame.TypedLength < 0 || frame.MistakesCount < 0 || frame.ElapsedMs < 0 {
			return nil, ErrInvalidPayload
		}
		return frame, nil
	case MsgResult:
		frame := &Result{}
		if err := decodeData(env.Data, frame); err != nil {
			return nil, err
		}
		for _, sample := range frame.Samples {
			if sample < 0 {
				return nil, ErrInvalidPayload
			}
		}
		if frame.TotalErrors != nil && *frame.TotalErrors < 0 {
			return nil, ErrInvalidPayload
		}
		if frame.TotalKeystrokes != nil && *frame.TotalKeystrokes < 0 {
			return nil, ErrInvalidPayload
		}
		return frame, nil
	case MsgForfeit:
		frame := &Forfeit{}
		if err := decodeData(env.Data, frame); err != nil {
			return nil, err
		}
		return frame, nil
	case MsgDrawVote:
		frame := &DrawVote{}
		if err := decodeData(env.Data, frame); err != nil {
			return nil, err
		}
		if frame.Vote != VoteDraw && frame.Vote != VoteContinue {
			return nil, ErrInvalidPayload
		}
		return frame, nil
	case MsgPing:
		frame := &Ping{}
		if err := decodeData(env.Data, frame); err != nil {
			return nil, err
		}
		return frame, nil
	case MsgLeave:
		frame := &Leave{}
		if err := decodeData(env.Data, frame); err != nil {
			return nil, err
		}
		return frame, nil
	default:
		return nil, ErrInvalidPayload
	}
}

// Encode wraps a payload into a tagged envelope ready for the socket.
func Encode(msgType string, payload interface{}) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "could not marshal %s payload", msgType)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

func decodeData(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := strictUnmarshal(data, dst); err != nil {
		return ErrInvalidPayload
	}
	return nil
}

func strictUnmarshal(raw []byte, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after frame")
	}
	return nil
}
