package a2a

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/researchmesh/a2a-go/pkg/errors"
)

/*
MessageType enumerates the closed set of message kinds that travel
between agents. Every handler switches exhaustively over these.
*/
type MessageType string

const (
	TypeTaskRequest      MessageType = "TASK_REQUEST"
	TypeTaskStatus       MessageType = "TASK_STATUS"
	TypeTaskResult       MessageType = "TASK_RESULT"
	TypeApprovalRequest  MessageType = "APPROVAL_REQUEST"
	TypeApprovalResponse MessageType = "APPROVAL_RESPONSE"
	TypeError            MessageType = "ERROR"
)

// TimestampFormat is the fixed UTC wire format for envelope timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

/*
Message is the envelope for all inter-agent communication. The payload
shape is determined by Type; the trace id is propagated unchanged from
the originating request through every derived message.
*/
type Message struct {
	MessageID string      `json:"message_id"`
	Type      MessageType `json:"type"`
	FromAgent string      `json:"from_agent"`
	ToAgent   string      `json:"to_agent"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id"`
	Payload   Payload     `json:"payload"`
	Signature string      `json:"signature,omitempty"`
}

/*
New creates a message with a fresh message id. An empty traceID means
the caller is starting a new logical chain and one is generated.
*/
func New(msgType MessageType, fromAgent, toAgent string, payload Payload, traceID string) *Message {
	if traceID == "" {
		traceID = uuid.NewString()
	}

	return &Message{
		MessageID: uuid.NewString(),
		Type:      msgType,
		FromAgent: fromAgent,
		ToAgent:   toAgent,
		Timestamp: time.Now().UTC().Format(TimestampFormat),
		TraceID:   traceID,
		Payload:   payload,
	}
}

/*
Marshal serializes the message for the wire.
*/
func (msg *Message) Marshal() ([]byte, error) {
	data, err := json.Marshal(msg)

	if err != nil {
		return nil, errors.ErrMalformedMessage.WithMessagef("failed to serialize message: %v", err)
	}

	return data, nil
}

/*
Unmarshal parses a wire message, decoding the payload into the concrete
variant named by the type tag. An unknown type tag or a payload missing
required fields fails with a malformed-message error.
*/
func Unmarshal(data []byte) (*Message, error) {
	var envelope struct {
		MessageID string          `json:"message_id"`
		Type      MessageType     `json:"type"`
		FromAgent string          `json:"from_agent"`
		ToAgent   string          `json:"to_agent"`
		Timestamp string          `json:"timestamp"`
		TraceID   string          `json:"trace_id"`
		Payload   json.RawMessage `json:"payload"`
		Signature string          `json:"signature,omitempty"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.ErrMalformedMessage.WithMessagef("failed to parse envelope: %v", err)
	}

	payload, err := unmarshalPayload(envelope.Type, envelope.Payload)

	if err != nil {
		return nil, err
	}

	return &Message{
		MessageID: envelope.MessageID,
		Type:      envelope.Type,
		FromAgent: envelope.FromAgent,
		ToAgent:   envelope.ToAgent,
		Timestamp: envelope.Timestamp,
		TraceID:   envelope.TraceID,
		Payload:   payload,
		Signature: envelope.Signature,
	}, nil
}
