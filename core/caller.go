package core

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
)

// Caller issues one metered call to the EVM RPC service. Every call declares
// the largest response it accepts and the cycles it pays.
//
// A *CallError return means the call mechanism rejected the call before any
// application outcome existed. Otherwise the outcome is in RequestResult.
type Caller interface {
	Request(ctx context.Context, service RpcService, payload string, maxResponseBytes uint64, cycles *uint256.Int) (RequestResult, error)
}

type CallerFunc func(ctx context.Context, service RpcService, payload string, maxResponseBytes uint64, cycles *uint256.Int) (RequestResult, error)

func (f CallerFunc) Request(ctx context.Context, service RpcService, payload string, maxResponseBytes uint64, cycles *uint256.Int) (RequestResult, error) {
	return f(ctx, service, payload, maxResponseBytes, cycles)
}

type RejectionCode int64

const (
	RejectionNoError            RejectionCode = 0
	RejectionSysFatal           RejectionCode = 1
	RejectionSysTransient       RejectionCode = 2
	RejectionDestinationInvalid RejectionCode = 3
	RejectionCanisterReject     RejectionCode = 4
	RejectionCanisterError      RejectionCode = 5
)

func (c RejectionCode) String() string {
	switch c {
	case RejectionNoError:
		return "NoError"
	case RejectionSysFatal:
		return "SysFatal"
	case RejectionSysTransient:
		return "SysTransient"
	case RejectionDestinationInvalid:
		return "DestinationInvalid"
	case RejectionCanisterReject:
		return "CanisterReject"
	case RejectionCanisterError:
		return "CanisterError"
	}

	return fmt.Sprintf("Unknown(%d)", int64(c))
}

// CallError is a rejection raised by the call mechanism itself.
type CallError struct {
	Code    RejectionCode
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call rejected (%s): %s", e.Code, e.Message)
}

// RequestResult is the application-level outcome of a completed call.
// A nil Err means Ok holds the raw JSON-RPC response.
type RequestResult struct {
	Ok  string
	Err RpcError
}

// RpcError is the structured error the EVM RPC service returns. It is one of
// ProviderError, HttpOutcallError, JsonRpcError or ValidationError.
type RpcError interface {
	rpcError()
}

type ProviderError struct {
	NoPermission            bool
	TooFewCycles            *TooFewCycles
	ProviderNotFound        bool
	MissingRequiredProvider bool
}

type TooFewCycles struct {
	Expected *uint256.Int
	Received *uint256.Int
}

type HttpOutcallError struct {
	IcError                    *IcError
	InvalidHttpJsonRpcResponse *InvalidHttpJsonRpcResponse
}

type IcError struct {
	Code    RejectionCode
	Message string
}

type InvalidHttpJsonRpcResponse struct {
	Status       uint16
	Body         string
	ParsingError string
}

type JsonRpcError struct {
	Code    int64
	Message string
}

type ValidationError struct {
	Message string
}

// GoString renders the variant that is set, so the error reads the same
// wherever it is formatted with %#v.
func (e ProviderError) GoString() string {
	switch {
	case e.NoPermission:
		return "core.ProviderError{NoPermission}"
	case e.TooFewCycles != nil:
		return fmt.Sprintf("core.ProviderError{TooFewCycles:%#v}", *e.TooFewCycles)
	case e.ProviderNotFound:
		return "core.ProviderError{ProviderNotFound}"
	case e.MissingRequiredProvider:
		return "core.ProviderError{MissingRequiredProvider}"
	}

	return "core.ProviderError{}"
}

func (t TooFewCycles) GoString() string {
	return fmt.Sprintf("core.TooFewCycles{Expected:%s, Received:%s}", decOrNil(t.Expected), decOrNil(t.Received))
}

func (e HttpOutcallError) GoString() string {
	switch {
	case e.IcError != nil:
		return fmt.Sprintf("core.HttpOutcallError{IcError:%#v}", *e.IcError)
	case e.InvalidHttpJsonRpcResponse != nil:
		return fmt.Sprintf("core.HttpOutcallError{InvalidHttpJsonRpcResponse:%#v}", *e.InvalidHttpJsonRpcResponse)
	}

	return "core.HttpOutcallError{}"
}

func decOrNil(v *uint256.Int) string {
	if v == nil {
		return "nil"
	}

	return v.Dec()
}

func (ProviderError) rpcError()    {}
func (HttpOutcallError) rpcError() {}
func (JsonRpcError) rpcError()     {}
func (ValidationError) rpcError()  {}
