package domain

import (
	"bytes"
	"encoding/json"
)

// Message types understood by the real-time protocol.
const (
	TypeEdit  = "edit"
	TypeError = "error"
)

// InvalidEditMessage is sent back to a client whose edit lacks a required field.
const InvalidEditMessage = "Invalid edit payload. Required fields: slide_index, field, value"

var requiredEditFields = []string{"slide_index", "field", "value"}

// Inbound is the decoded form of one raw frame: either *StructuredMessage
// or PlainText.
type Inbound interface {
	inbound()
}

// PlainText is a frame that is not a JSON object.
type PlainText struct {
	Text string
}

// StructuredMessage is a frame holding a JSON object.
type StructuredMessage struct {
	// Type is the "type" discriminant, empty when absent or not a string.
	Type string
	// Fields holds every member of the object verbatim.
	Fields map[string]json.RawMessage
	// Raw is the compact JSON encoding of the object, key order preserved.
	Raw []byte
}

func (PlainText) inbound()          {}
func (*StructuredMessage) inbound() {}

// DecodeInbound classifies a raw frame. Only JSON objects are structured;
// anything else, valid JSON scalars and arrays included, is plain text.
func DecodeInbound(raw []byte) Inbound {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return PlainText{Text: string(raw)}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return PlainText{Text: string(raw)}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return PlainText{Text: string(raw)}
	}

	msg := &StructuredMessage{Fields: fields, Raw: compact.Bytes()}
	if t, ok := fields["type"]; ok {
		var s string
		if json.Unmarshal(t, &s) == nil {
			msg.Type = s
		}
	}
	return msg
}

// EditBroadcast is the enriched edit relayed to every connection. Field
// values are carried verbatim from the inbound frame.
type EditBroadcast struct {
	Type       string          `json:"type"`
	ClientID   string          `json:"client_id"`
	SlideIndex json.RawMessage `json:"slide_index"`
	Field      json.RawMessage `json:"field"`
	Value      json.RawMessage `json:"value"`
}

// EditOutcome is the result of validating an edit: ValidEdit or InvalidEdit.
type EditOutcome interface {
	editOutcome()
}

// ValidEdit carries the payload ready to broadcast.
type ValidEdit struct {
	Payload EditBroadcast
}

// InvalidEdit carries the reason sent back to the originating client.
type InvalidEdit struct {
	Reason  string
	Missing []string
}

func (ValidEdit) editOutcome()   {}
func (InvalidEdit) editOutcome() {}

// ValidateEdit checks that msg has every required edit field and stamps it
// with the sender's client id. Presence is what is checked: a JSON null
// value is still present.
func ValidateEdit(msg *StructuredMessage, clientID string) EditOutcome {
	var missing []string
	for _, name := range requiredEditFields {
		if _, ok := msg.Fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return InvalidEdit{Reason: InvalidEditMessage, Missing: missing}
	}

	return ValidEdit{Payload: EditBroadcast{
		Type:       TypeEdit,
		ClientID:   clientID,
		SlideIndex: rawOrNull(msg.Fields["slide_index"]),
		Field:      rawOrNull(msg.Fields["field"]),
		Value:      rawOrNull(msg.Fields["value"]),
	}}
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

// ErrorMessage is the outbound error payload, sent to one client only.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorMessage builds an ErrorMessage with the error type set.
func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

// PlainTextRelay formats a chat line attributed to clientID.
func PlainTextRelay(clientID, text string) string {
	return clientID + ": " + text
}
