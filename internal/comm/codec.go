package comm

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// envelope is the wire frame: a correlation id for log tracing, the message
// kind, and the kind-specific payload.
type envelope struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode serialises msg into a JSON envelope with a fresh correlation id.
//
// Precondition: msg must not be an UnknownMessage.
// Postcondition: Returns a single-line JSON document with no trailing newline.
func Encode(msg Message) ([]byte, error) {
	if _, ok := msg.(UnknownMessage); ok {
		return nil, fmt.Errorf("comm: cannot encode unknown message kind %q", msg.Kind())
	}

	env := envelope{ID: uuid.NewString(), Kind: msg.Kind()}

	// AckMessage has no payload fields; everything else marshals as-is.
	if _, ok := msg.(AckMessage); !ok {
		payload, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("comm: marshalling %s payload: %w", msg.Kind(), err)
		}
		env.Payload = payload
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("comm: marshalling envelope: %w", err)
	}
	return data, nil
}

// Decode parses a JSON envelope into its concrete message.
//
// Postcondition: A recognised kind yields its concrete message type; an
// unrecognised kind yields UnknownMessage (nil error) so the caller can
// log-and-drop it. Malformed JSON yields a non-nil error.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("comm: unmarshalling envelope: %w", err)
	}

	var (
		msg Message
		err error
	)
	switch env.Kind {
	case KindRegister:
		msg, err = decodePayload[RegisterMessage](env)
	case KindInit:
		msg, err = decodePayload[InitMessage](env)
	case KindGameStart:
		msg, err = decodePayload[GameStartMessage](env)
	case KindState:
		msg, err = decodePayload[StateMessage](env)
	case KindRequestBehaviorCount:
		msg, err = decodePayload[RequestBehaviorCountMessage](env)
	case KindRequestPolicy:
		msg, err = decodePayload[RequestPolicyMessage](env)
	case KindPolicy:
		msg, err = decodePayload[PolicyMessage](env)
	case KindAck:
		msg = AckMessage{}
	case KindAction:
		msg, err = decodePayload[ActionMessage](env)
	case KindBehaviorCount:
		msg, err = decodePayload[BehaviorCountMessage](env)
	case KindError:
		msg, err = decodePayload[ErrorMessage](env)
	default:
		msg = UnknownMessage{WireKind: env.Kind}
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func decodePayload[T Message](env envelope) (Message, error) {
	var msg T
	if len(env.Payload) == 0 {
		return msg, nil
	}
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		return nil, fmt.Errorf("comm: unmarshalling %s payload: %w", env.Kind, err)
	}
	return msg, nil
}
