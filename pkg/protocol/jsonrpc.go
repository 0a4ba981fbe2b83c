// Package protocol provides the JSON-RPC wire types for the plugin protocol.
package protocol

import (
	"encoding/json"
	"strconv"
)

// Version is the JSON-RPC version tag carried by every frame.
const Version = "2.0"

// Envelope is one decoded inbound message. Exactly one of the frame kinds
// (request, notification, response, error response) is represented at a time;
// Kind reports which. Inbound ids are kept as raw JSON and echoed back
// verbatim, since the peer chooses its own id scheme.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject contains the error details of an error response.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Request is an outgoing call that expects a response.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an outgoing reply to an inbound request. Result is always
// emitted, as null when the handler produced no value.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

// ErrorResponse is an outgoing error reply to an inbound request.
type ErrorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *ErrorObject    `json:"error"`
}

// Notification is an outgoing fire-and-forget message. It carries no id and
// the peer never replies to it.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Standard JSON-RPC error codes plus the protocol's reserved server range.
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602

	ErrTimeout = -32000
	ErrAborted = -32001
)

// Default messages for the protocol-level error codes.
const (
	MsgParseError     = "Parse error"
	MsgInvalidRequest = "Invalid Request"
	MsgMethodNotFound = "Method not found"
	MsgInvalidParams  = "Invalid params"
	MsgTimeout        = "Method timed out"
	MsgAborted        = "Method aborted"
)

// NewRequest creates a new outbound request.
func NewRequest(id int64, method string, params any) *Request {
	return &Request{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// NewResponse creates a reply carrying the result for the given request id.
func NewResponse(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates an error reply for the given request id. A nil id
// produces the null-id form used to reject frames whose id was unrecoverable.
func NewErrorResponse(id json.RawMessage, errObj *ErrorObject) *ErrorResponse {
	if id == nil {
		id = json.RawMessage("null")
	}
	return &ErrorResponse{
		JSONRPC: Version,
		ID:      id,
		Error:   errObj,
	}
}

// NewNotification creates an outbound notification.
func NewNotification(method string, params any) *Notification {
	return &Notification{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
	}
}

// IDString renders an inbound id for log output.
func IDString(id json.RawMessage) string {
	if len(id) == 0 {
		return "<none>"
	}
	return string(id)
}

// ParseIntID extracts an integer id from its raw form. Responses to calls
// issued by this side always carry integer ids, anything else is stale.
func ParseIntID(id json.RawMessage) (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
