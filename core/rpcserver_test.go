package core

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testServerConfig = `
services:
  mainnet:
    service: {kind: EthMainnet, provider: PublicNode}
    allowedMethods: ["eth_blockNumber", "eth_chainId"]
  capped:
    service: {kind: Chain, chainId: 137}
    callCycles: "1000000"
    maxResponseSize: 4096
`

func newTestServer(t *testing.T, caller Caller) *httptest.Server {
	config, err := ParseConfig([]byte(testServerConfig))
	require.NoError(t, err)

	running, err := BuildRunningConfig(config, caller)
	require.NoError(t, err)

	server := httptest.NewServer(NewServer(running))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body string) (int, Response) {
	res, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer res.Body.Close()

	bts, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(bts, &resp), string(bts))
	return res.StatusCode, resp
}

func TestServeHTTP(t *testing.T) {
	caller := &fakeCaller{result: RequestResult{Ok: okBlockNumber}}
	server := newTestServer(t, caller)

	status, resp := postJSON(t, server.URL+"/http/mainnet", `{"params": [], "method": "eth_blockNumber", "id": 1, "jsonrpc": "2.0"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, resp.Err)
	assert.Equal(t, json.RawMessage(`"0x10d4f"`), resp.Result)

	call := caller.lastCall(t)
	assert.Equal(t, EthMainnet("PublicNode"), call.service)
	assert.Equal(t, uint64(1000), call.maxResponseBytes)
	assert.Equal(t, "60000000000", call.cycles.Dec())
}

func TestServeHTTPBatch(t *testing.T) {
	caller := &fakeCaller{result: RequestResult{Ok: `[{"jsonrpc":"2.0","id":1,"result":"0x1"},{"jsonrpc":"2.0","id":2,"result":"0x2"}]`}}
	server := newTestServer(t, caller)

	res, err := http.Post(server.URL+"/http/capped", "application/json", strings.NewReader(`[
		{"params": [], "method": "eth_chainId", "id": 1, "jsonrpc": "2.0"},
		{"params": [], "method": "eth_call", "id": 2, "jsonrpc": "2.0"}
	]`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var packet ResponsePacket
	require.NoError(t, json.NewDecoder(res.Body).Decode(&packet))
	assert.True(t, packet.IsBatch())
	assert.Len(t, packet.Batch, 2)

	call := caller.lastCall(t)
	assert.Equal(t, uint64(4096), call.maxResponseBytes)
	assert.Equal(t, "1000000", call.cycles.Dec())
}

func TestServeHTTPErrors(t *testing.T) {
	caller := &fakeCaller{err: &CallError{Code: 120, Message: "out of cycles"}}
	server := newTestServer(t, caller)

	status, resp := postJSON(t, server.URL+"/http/capped", `{"params": [], "method": "eth_blockNumber", "id": 9, "jsonrpc": "2.0"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	require.NotNil(t, resp.Err)
	assert.Equal(t, int64(120), resp.Err.Code)
	assert.Equal(t, "out of cycles", resp.Err.Message)
	assert.Equal(t, json.RawMessage("9"), resp.ID)

	status, resp = postJSON(t, server.URL+"/http/mainnet", `{"params": [], "method": "eth_call", "id": 3, "jsonrpc": "2.0"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Err)
	assert.Equal(t, codeMethodNotAllowed, resp.Err.Code)
	assert.Equal(t, json.RawMessage("3"), resp.ID)

	status, resp = postJSON(t, server.URL+"/http/mainnet", `{"params": [`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, codeInvalidRequest, resp.Err.Code)
	assert.Equal(t, json.RawMessage("null"), resp.ID)

	status, _ = postJSON(t, server.URL+"/http/moon", `{"params": [], "method": "eth_call", "id": 3, "jsonrpc": "2.0"}`)
	assert.Equal(t, http.StatusNotFound, status)

	res, err := http.Get(server.URL + "/http/mainnet")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	assert.Len(t, caller.calls, 1)
}

func TestServeHealth(t *testing.T) {
	server := newTestServer(t, &fakeCaller{})

	res, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	var info HealthInfo
	require.NoError(t, json.NewDecoder(res.Body).Decode(&info))

	assert.Equal(t, ServiceInfo{
		RpcService:      "EthMainnet/PublicNode",
		ChainId:         "0x1",
		CallCycles:      "60000000000",
		MaxResponseSize: "estimated",
	}, info["mainnet"])

	assert.Equal(t, ServiceInfo{
		RpcService:      "Chain/137",
		ChainId:         "0x89",
		CallCycles:      "1000000",
		MaxResponseSize: "4096",
	}, info["capped"])
}

func TestServeMetrics(t *testing.T) {
	server := newTestServer(t, &fakeCaller{result: RequestResult{Ok: okBlockNumber}})

	postJSON(t, server.URL+"/http/mainnet", `{"params": [], "method": "eth_blockNumber", "id": 1, "jsonrpc": "2.0"}`)

	res, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	bts, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(bts), `evm_rpc_transport_requests_total{name="eth_blockNumber"}`)
}

func TestServeWS(t *testing.T) {
	server := newTestServer(t, &fakeCaller{result: RequestResult{Ok: okBlockNumber}})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/mainnet", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"params": [], "method": "eth_blockNumber", "id": 1, "jsonrpc": "2.0"}`)))

		_, p, err := conn.ReadMessage()
		require.NoError(t, err)

		var resp Response
		require.NoError(t, json.Unmarshal(p, &resp))
		assert.Equal(t, json.RawMessage(`"0x10d4f"`), resp.Result)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"params": [], "method": "eth_call", "id": 2, "jsonrpc": "2.0"}`)))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(p, &resp))
	require.NotNil(t, resp.Err)
	assert.Equal(t, codeMethodNotAllowed, resp.Err.Code)
}

func TestServeWSCloseCancelsCall(t *testing.T) {
	started := make(chan struct{}, 1)
	canceled := make(chan error, 1)
	caller := CallerFunc(func(ctx context.Context, service RpcService, payload string, maxResponseBytes uint64, cycles *uint256.Int) (RequestResult, error) {
		started <- struct{}{}
		<-ctx.Done()
		canceled <- ctx.Err()
		return RequestResult{}, ctx.Err()
	})
	server := newTestServer(t, caller)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/mainnet", nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"params": [], "method": "eth_blockNumber", "id": 1, "jsonrpc": "2.0"}`)))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("call did not start")
	}

	require.NoError(t, conn.Close())

	select {
	case err := <-canceled:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("call was not abandoned after the connection closed")
	}
}

func TestServeWSUnknownService(t *testing.T) {
	server := newTestServer(t, &fakeCaller{})

	_, res, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/moon", nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestServerApply(t *testing.T) {
	config, err := ParseConfig([]byte(testServerConfig))
	require.NoError(t, err)

	running, err := BuildRunningConfig(config, &fakeCaller{})
	require.NoError(t, err)
	s := NewServer(running)
	assert.Same(t, running, s.Running())

	config.Services = map[string]ServiceConfig{"only": {Service: Chain(1)}}
	next, err := BuildRunningConfig(config, &fakeCaller{})
	require.NoError(t, err)
	s.Apply(next)
	assert.Same(t, next, s.Running())
}
