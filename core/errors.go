package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// RpcErrorCode is the code reported for any structured error returned by
// the EVM RPC service.
const RpcErrorCode int64 = 6

type ErrorKind int

const (
	// SerError: the request packet could not be encoded. No call was made.
	SerError ErrorKind = iota
	// DeserError: the call succeeded but its payload is not a response packet.
	DeserError
	// ErrorResp: the call was rejected or the service answered with an error.
	ErrorResp
	// CallFailed: the caller gave up without a rejection code, e.g. on context cancellation.
	CallFailed
)

func (k ErrorKind) String() string {
	switch k {
	case SerError:
		return "ser"
	case DeserError:
		return "deser"
	case ErrorResp:
		return "error_resp"
	case CallFailed:
		return "call_failed"
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// TransportError is the single error type returned by a transport call.
type TransportError struct {
	Kind ErrorKind
	Err  error
	// Text is the raw payload that failed to decode.
	Text string
	// Payload is set for ErrorResp.
	Payload *ErrorPayload
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case SerError:
		return fmt.Sprintf("serialization error: %v", e.Err)
	case DeserError:
		text := e.Text
		if len(text) > 200 {
			text = text[:200]
		}
		return fmt.Sprintf("deserialization error: %v, text: %s", e.Err, text)
	case ErrorResp:
		return fmt.Sprintf("server returned an error response: %v", e.Payload)
	}

	return fmt.Sprintf("call failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	if e.Kind == ErrorResp {
		return e.Payload
	}

	return e.Err
}

func serErr(err error) *TransportError {
	return &TransportError{Kind: SerError, Err: err}
}

func deserErr(err error, text string) *TransportError {
	return &TransportError{Kind: DeserError, Err: err, Text: text}
}

func errorResp(code int64, message string) *TransportError {
	return &TransportError{Kind: ErrorResp, Payload: &ErrorPayload{Code: code, Message: message}}
}

// mapCallError converts a failure of the call mechanism. Rejection code and
// message are kept verbatim.
func mapCallError(err error) *TransportError {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return errorResp(int64(callErr.Code), callErr.Message)
	}

	return &TransportError{Kind: CallFailed, Err: err}
}

// mapRpcError converts a structured error returned by the service. Only its
// rendered form survives.
func mapRpcError(rpcErr RpcError) *TransportError {
	return errorResp(RpcErrorCode, fmt.Sprintf("%#v", rpcErr))
}

// ErrorPayloadOf returns the error object of an ErrorResp transport error.
func ErrorPayloadOf(err error) (*ErrorPayload, bool) {
	var transportErr *TransportError
	if errors.As(err, &transportErr) && transportErr.Kind == ErrorResp {
		return transportErr.Payload, true
	}

	return nil, false
}

func IsErrorResp(err error) bool {
	_, ok := ErrorPayloadOf(err)
	return ok
}

func IsDeserError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr) && transportErr.Kind == DeserError
}
