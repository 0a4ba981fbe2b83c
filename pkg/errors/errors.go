// Package errors defines the closed error taxonomy of the plugin protocol
// and its mapping to and from wire error objects.
package errors

import (
	"errors"
	"fmt"
	"time"

	"github.com/openlauncher/plugin-go/pkg/protocol"
)

// Kind identifies one failure class of the closed taxonomy. Every kind maps
// to exactly one wire error code.
type Kind int

const (
	// KindUnknown is the catch-all for unclassified local failures. Raw
	// internal error text is never sent in its place.
	KindUnknown Kind = iota
	KindAuthenticationRequired
	KindBackendNotAvailable
	KindBackendTimeout
	KindBackendError
	KindTooManyRequests
	KindUnknownBackendResponse
	KindInvalidCredentials
	KindNetworkError
	KindProtocolViolation
	KindTemporaryBlocked
	KindBanned
	KindAccessDenied
	KindFailedParsingManifest
	KindTooManyMessagesSent
	KindIncoherentLastMessage
	KindMessageNotFound
	KindImportInProgress
)

type kindInfo struct {
	code    int
	message string
}

// The code table is fixed by the protocol version; codes in the reserved
// JSON-RPC range (-32768..-32000) never appear here.
var kindTable = map[Kind]kindInfo{
	KindUnknown:                {0, "Unknown error"},
	KindAuthenticationRequired: {1, "Authentication required"},
	KindBackendNotAvailable:    {2, "Backend not available"},
	KindBackendTimeout:         {3, "Backend timed out"},
	KindBackendError:           {4, "Backend error"},
	KindTooManyRequests:        {5, "Too many requests. Try again later"},
	KindUnknownBackendResponse: {6, "Backend responded in unknown way"},
	KindInvalidCredentials:     {100, "Invalid credentials"},
	KindNetworkError:           {101, "Network error"},
	KindProtocolViolation:      {103, "Protocol error"},
	KindTemporaryBlocked:       {104, "Temporary blocked"},
	KindBanned:                 {105, "Banned"},
	KindAccessDenied:           {106, "Access denied"},
	KindFailedParsingManifest:  {200, "Failed parsing manifest"},
	KindTooManyMessagesSent:    {300, "Too many messages sent"},
	KindIncoherentLastMessage:  {400, "Different last message id on backend"},
	KindMessageNotFound:        {500, "Message not found"},
	KindImportInProgress:       {600, "Import already in progress"},
}

var kindByCode = func() map[int]Kind {
	m := make(map[int]Kind, len(kindTable))
	for k, info := range kindTable {
		m[info.code] = k
	}
	return m
}()

func (k Kind) String() string {
	if info, ok := kindTable[k]; ok {
		return info.message
	}
	return "Unknown error"
}

// Code returns the wire error code of the kind.
func (k Kind) Code() int {
	if info, ok := kindTable[k]; ok {
		return info.code
	}
	return kindTable[KindUnknown].code
}

// ApplicationError is a domain failure with a stable wire code. It is the
// only error type whose message crosses the wire.
type ApplicationError struct {
	Kind    Kind
	Message string
	Data    any
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("application error %d: %s", e.Kind.Code(), e.Message)
}

// Is makes errors.Is match two application errors of the same kind.
func (e *ApplicationError) Is(target error) bool {
	var other *ApplicationError
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// New creates an application error of the given kind with its default
// message.
func New(kind Kind) *ApplicationError {
	return &ApplicationError{Kind: kind, Message: kind.String()}
}

// NewWithData attaches structured data to an application error.
func NewWithData(kind Kind, data any) *ApplicationError {
	return &ApplicationError{Kind: kind, Message: kind.String(), Data: data}
}

func AuthenticationRequired() *ApplicationError { return New(KindAuthenticationRequired) }
func BackendNotAvailable() *ApplicationError    { return New(KindBackendNotAvailable) }
func BackendTimeout() *ApplicationError         { return New(KindBackendTimeout) }
func BackendError() *ApplicationError           { return New(KindBackendError) }
func TooManyRequests() *ApplicationError        { return New(KindTooManyRequests) }
func UnknownBackendResponse() *ApplicationError { return New(KindUnknownBackendResponse) }
func InvalidCredentials() *ApplicationError     { return New(KindInvalidCredentials) }
func NetworkError() *ApplicationError           { return New(KindNetworkError) }
func TemporaryBlocked() *ApplicationError       { return New(KindTemporaryBlocked) }
func Banned() *ApplicationError                 { return New(KindBanned) }
func AccessDenied() *ApplicationError           { return New(KindAccessDenied) }
func ImportInProgress() *ApplicationError       { return New(KindImportInProgress) }
func Unknown() *ApplicationError                { return New(KindUnknown) }

// ToWire converts any local failure into a wire error object. The mapping is
// total: application errors keep their kind's code and message, everything
// else collapses to the unknown-error code so internal detail never leaks.
func ToWire(err error) *protocol.ErrorObject {
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return &protocol.ErrorObject{
			Code:    appErr.Kind.Code(),
			Message: appErr.Message,
			Data:    appErr.Data,
		}
	}
	unknown := kindTable[KindUnknown]
	return &protocol.ErrorObject{Code: unknown.code, Message: unknown.message}
}

// FromWire reconstructs the closest matching application error from a wire
// error object. Unrecognized codes fall back to the unknown kind, keeping the
// peer's message, so newer peers stay readable.
func FromWire(obj *protocol.ErrorObject) *ApplicationError {
	if obj == nil {
		return Unknown()
	}
	kind, ok := kindByCode[obj.Code]
	if !ok {
		kind = KindUnknown
	}
	msg := obj.Message
	if msg == "" {
		msg = kind.String()
	}
	return &ApplicationError{Kind: kind, Message: msg, Data: obj.Data}
}

// Engine-level failures. These never cross the wire themselves; they settle
// pending calls or report transport state locally.
var (
	// ErrConnectionClosed settles every pending call when the transport
	// closes.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrCallCancelled settles pending calls abandoned during shutdown.
	ErrCallCancelled = errors.New("call cancelled")
)

// InvalidParamsError rejects a request whose parameters did not parse. It
// maps to the reserved invalid-params code instead of the domain taxonomy.
type InvalidParamsError struct {
	cause error
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid params: %v", e.cause)
}

func (e *InvalidParamsError) Unwrap() error { return e.cause }

// NewInvalidParams wraps a parameter decoding failure.
func NewInvalidParams(cause error) *InvalidParamsError {
	return &InvalidParamsError{cause: cause}
}

// IsUnrecoverableAuth reports whether an authentication failure cannot be
// retried within this session. The client treats a banned account as final,
// so the plugin shuts down after replying.
func IsUnrecoverableAuth(err error) bool {
	var appErr *ApplicationError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Kind == KindBanned
}

// TimeoutError settles a pending call that received no response in time.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call %s timed out after %s", e.Method, e.Timeout)
}

// IsTimeout reports whether err is a per-call timeout.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}
