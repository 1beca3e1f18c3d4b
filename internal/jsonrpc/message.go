package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the version tag carried by every message.
const ProtocolVersion = "2.0"

// Kind identifies which variant of the Message union a value holds.
type Kind int

const (
	// KindInvalid is the zero Kind; no well-formed message has it.
	KindInvalid Kind = iota
	// KindRequest is a message with an id and a method.
	KindRequest
	// KindNotification is a message with a method and no id.
	KindNotification
	// KindResponse is a message with an id and exactly one of result or error.
	KindResponse
)

// String returns a lower-case name for the kind.
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

// Message is a JSON-RPC 2.0 request, notification or response.
//
// Params and Result are kept as raw JSON; method handlers decode them into
// their own typed shapes.
type Message struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	ID             *RequestID      `json:"id,omitempty"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *ErrorObject    `json:"error,omitempty"`
}

// Kind returns the message variant. It does not validate the message.
func (m *Message) Kind() Kind {
	switch {
	case m == nil:
		return KindInvalid
	case m.Method != "" && m.ID != nil:
		return KindRequest
	case m.Method != "":
		return KindNotification
	case m.ID != nil || m.Error != nil || m.Result != nil:
		return KindResponse
	default:
		return KindInvalid
	}
}

// IsError reports whether the message is an error response.
func (m *Message) IsError() bool {
	return m != nil && m.Error != nil
}

// Validate checks the structural rules of the envelope.
func (m *Message) Validate() error {
	if m == nil {
		return errors.New("nil message")
	}

	if m.JSONRPCVersion != ProtocolVersion {
		return fmt.Errorf("invalid jsonrpc version: expected %q, got %q", ProtocolVersion, m.JSONRPCVersion)
	}

	hasResult := m.Result != nil
	hasError := m.Error != nil

	if m.Method != "" {
		if hasResult || hasError {
			return errors.New("request cannot carry result or error")
		}

		return nil
	}

	if m.ID == nil {
		return errors.New("message has neither method nor id")
	}

	if hasResult == hasError {
		return errors.New("response must carry exactly one of result or error")
	}

	return nil
}

// UnmarshalJSON decodes and validates a message envelope.
func (m *Message) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	var out Message

	if raw, ok := fields["jsonrpc"]; ok {
		if err := json.Unmarshal(raw, &out.JSONRPCVersion); err != nil {
			return fmt.Errorf("invalid jsonrpc field: %w", err)
		}
	}

	if raw, ok := fields["method"]; ok {
		if err := json.Unmarshal(raw, &out.Method); err != nil {
			return fmt.Errorf("invalid method field: %w", err)
		}

		if out.Method == "" {
			return errors.New("method must not be empty")
		}
	}

	if raw, ok := fields["id"]; ok && string(raw) != "null" {
		var id RequestID
		if err := json.Unmarshal(raw, &id); err != nil {
			return fmt.Errorf("invalid id field: %w", err)
		}

		out.ID = &id
	}

	if raw, ok := fields["params"]; ok {
		out.Params = raw
	}

	if raw, ok := fields["result"]; ok {
		out.Result = raw
	}

	if raw, ok := fields["error"]; ok && string(raw) != "null" {
		var eo ErrorObject
		if err := json.Unmarshal(raw, &eo); err != nil {
			return fmt.Errorf("invalid error field: %w", err)
		}

		out.Error = &eo
	}

	if out.Method == "" && out.ID == nil && (out.Result != nil || out.Error != nil) {
		// A response to a request whose id could not be read carries id null.
		nullID := StringID("")
		out.ID = &nullID
	}

	if err := out.Validate(); err != nil {
		return err
	}

	*m = out

	return nil
}

// NewRequest builds a request message with params marshaled to JSON.
func NewRequest(id RequestID, method string, params any) (*Message, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	return &Message{
		JSONRPCVersion: ProtocolVersion,
		ID:             &id,
		Method:         method,
		Params:         raw,
	}, nil
}

// NewNotification builds a notification message.
func NewNotification(method string, params any) (*Message, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	return &Message{
		JSONRPCVersion: ProtocolVersion,
		Method:         method,
		Params:         raw,
	}, nil
}

// NewResultResponse builds a successful response. A nil result is encoded as
// an empty object so that the response always carries a result member.
func NewResultResponse(id RequestID, result any) (*Message, error) {
	var raw json.RawMessage

	if result == nil {
		raw = json.RawMessage("{}")
	} else {
		b, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}

		raw = b
	}

	return &Message{
		JSONRPCVersion: ProtocolVersion,
		ID:             &id,
		Result:         raw,
	}, nil
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id RequestID, code ErrorCode, message string, data any) *Message {
	return &Message{
		JSONRPCVersion: ProtocolVersion,
		ID:             &id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// NewMethodNotFoundResponse builds the error response for a method that has
// no handler. The method name is echoed in data.
func NewMethodNotFoundResponse(id RequestID, method string) *Message {
	return NewErrorResponse(id, ErrorCodeMethodNotFound, "Method not found: "+method, map[string]any{"method": method})
}

// DecodeParams unmarshals the params member into v. Missing params leave v untouched.
func (m *Message) DecodeParams(v any) error {
	if len(m.Params) == 0 || string(m.Params) == "null" {
		return nil
	}

	return json.Unmarshal(m.Params, v)
}

// DecodeResult unmarshals the result member into v.
func (m *Message) DecodeResult(v any) error {
	if m.Error != nil {
		return fmt.Errorf("response carries an error: %s", m.Error.Message)
	}

	return json.Unmarshal(m.Result, v)
}

func marshalOptional(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}

	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}

	return json.Marshal(v)
}
