package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/ivanzzeth/evm-rpc-transport/utils"
)

const DefaultCallCycles uint64 = 60_000_000_000

// TransportConfig holds the call target and the optional overrides a
// Transport starts from. The With methods return modified copies.
type TransportConfig struct {
	rpcService      RpcService
	callCycles      *uint256.Int
	maxResponseSize *uint64
}

func NewTransportConfig(rpcService RpcService) TransportConfig {
	return TransportConfig{rpcService: rpcService}
}

// WithCallCycles overrides the cycles attached to each call. nil clears the
// override.
func (c TransportConfig) WithCallCycles(callCycles *uint256.Int) TransportConfig {
	c.callCycles = cloneCycles(callCycles)
	return c
}

func cloneCycles(cycles *uint256.Int) *uint256.Int {
	if cycles == nil {
		return nil
	}

	return new(uint256.Int).Set(cycles)
}

func (c TransportConfig) WithMaxResponseSize(maxResponseSize uint64) TransportConfig {
	c.maxResponseSize = &maxResponseSize
	return c
}

func (c TransportConfig) RpcService() RpcService {
	return c.rpcService
}

func (c TransportConfig) CallCycles() (*uint256.Int, bool) {
	if c.callCycles == nil {
		return nil, false
	}

	return new(uint256.Int).Set(c.callCycles), true
}

func (c TransportConfig) MaxResponseSize() (uint64, bool) {
	if c.maxResponseSize == nil {
		return 0, false
	}

	return *c.maxResponseSize, true
}

// Service is the call contract shared by transports and the layers that wrap
// them.
type Service interface {
	Ready() error
	Call(ctx context.Context, packet RequestPacket) (ResponsePacket, error)
}

var _ Service = Transport{}
var _ Service = (*Transport)(nil)

// Transport sends JSON-RPC packets through a metered Caller, one call per
// packet. Calls take a snapshot of the transport, so a value may be shared
// by concurrent calls as long as the setters are not used meanwhile.
//
// Cancelling the context of a call only stops waiting for it. The service
// may still execute the request and charge the attached cycles.
type Transport struct {
	rpcService      RpcService
	callCycles      *uint256.Int
	maxResponseSize *uint64
	caller          Caller
}

func NewTransport(config TransportConfig, caller Caller) *Transport {
	return &Transport{
		rpcService:      config.rpcService,
		callCycles:      config.callCycles,
		maxResponseSize: config.maxResponseSize,
		caller:          caller,
	}
}

func (t *Transport) SetRpcService(rpcService RpcService) {
	t.rpcService = rpcService
}

func (t Transport) RpcService() RpcService {
	return t.rpcService
}

// SetCallCycles overrides the cycles attached to each call. nil restores the
// default.
func (t *Transport) SetCallCycles(callCycles *uint256.Int) {
	t.callCycles = cloneCycles(callCycles)
}

func (t Transport) CallCycles() (*uint256.Int, bool) {
	if t.callCycles == nil {
		return nil, false
	}

	return new(uint256.Int).Set(t.callCycles), true
}

func (t *Transport) SetMaxResponseSize(maxResponseSize uint64) {
	t.maxResponseSize = &maxResponseSize
}

func (t Transport) MaxResponseSize() (uint64, bool) {
	if t.maxResponseSize == nil {
		return 0, false
	}

	return *t.maxResponseSize, true
}

// IsLocal always reports false.
func (t Transport) IsLocal() bool {
	return false
}

// Ready always succeeds: the transport has no queue or connection state.
func (t Transport) Ready() error {
	return nil
}

func (t Transport) Call(ctx context.Context, packet RequestPacket) (ResponsePacket, error) {
	return t.request(ctx, packet)
}

type Result struct {
	Response ResponsePacket
	Err      error
}

// Go runs the call on its own goroutine. The channel receives exactly one
// Result and is buffered, so it may be abandoned.
func (t Transport) Go(ctx context.Context, packet RequestPacket) <-chan Result {
	done := make(chan Result, 1)

	go func() {
		res, err := t.request(ctx, packet)
		done <- Result{Response: res, Err: err}
	}()

	return done
}

func (t Transport) resolveMaxResponseSize(packet RequestPacket) uint64 {
	if t.maxResponseSize != nil {
		return *t.maxResponseSize
	}

	return EstimateMaxResponseSize(packet)
}

func (t Transport) resolveCallCycles() *uint256.Int {
	if t.callCycles != nil {
		return new(uint256.Int).Set(t.callCycles)
	}

	return uint256.NewInt(DefaultCallCycles)
}

func (t Transport) request(ctx context.Context, packet RequestPacket) (ResponsePacket, error) {
	logger := logrus.WithFields(logrus.Fields{
		"request_id": utils.RandStringRunes(8),
		"service":    t.rpcService.String(),
	})

	maxResponseSize := t.resolveMaxResponseSize(packet)
	callCycles := t.resolveCallCycles()

	serialized, err := packet.Serialize()
	if err != nil {
		logger.Debugf("serialize %s failed: %v", packet, err)
		return ResponsePacket{}, serErr(err)
	}

	logger.Debugf("call %s, max response size: %d, cycles: %s", packet, maxResponseSize, callCycles.Dec())
	CountCycles(t.rpcService.String(), callCycles)

	startTime := time.Now()
	result, err := t.caller.Request(ctx, t.rpcService, serialized, maxResponseSize, callCycles)
	logger.Debugf("call %s returned after %v", packet, time.Since(startTime))

	if err != nil {
		return ResponsePacket{}, mapCallError(err)
	}

	if result.Err != nil {
		return ResponsePacket{}, mapRpcError(result.Err)
	}

	var res ResponsePacket
	if err := json.Unmarshal([]byte(result.Ok), &res); err != nil {
		return ResponsePacket{}, deserErr(err, result.Ok)
	}

	return res, nil
}
