package core

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ivanzzeth/evm-rpc-transport/utils"
)

const (
	codeInvalidRequest   int64 = -32600
	codeMethodNotAllowed int64 = -32601
	codeInternalError    int64 = -32603
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes the configured transports over HTTP and websocket.
//
// Support path:
// 1. /ws/{service}
// 2. /http/{service}
// 3. /health
// 4. /metrics
type Server struct {
	running atomic.Pointer[RunningConfig]
	metrics http.Handler
}

func NewServer(running *RunningConfig) *Server {
	s := &Server{metrics: promhttp.Handler()}
	s.Apply(running)
	return s
}

// Apply swaps in a new running config. Requests already in flight finish on
// the config they started with.
func (h *Server) Apply(running *RunningConfig) {
	h.running.Store(running)
}

func (h *Server) Running() *RunningConfig {
	return h.running.Load()
}

func getErrorResponseBytes(id json.RawMessage, code int64, reason string) []byte {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}

	bts, _ := json.Marshal(Response{
		JsonRpc: JsonRpcVersion,
		ID:      id,
		Err:     &ErrorPayload{Code: code, Message: reason},
	})

	return bts
}

// packetID is the id echoed in an error response: the request id for a
// single request, null for a batch.
func packetID(packet RequestPacket) json.RawMessage {
	if packet.IsBatch() {
		return nil
	}

	return packet.Requests()[0].Meta().ID
}

// handle runs one request body through the service and returns the
// response body together with the HTTP status to report.
func (h *Server) handle(ctx context.Context, svc *RunningService, logger *logrus.Entry, body []byte) ([]byte, int) {
	packet, err := ParseRequestPacket(body)
	if err != nil {
		Count("bad_request")
		logger.Errorf("invalid request: %v", err)
		return getErrorResponseBytes(nil, codeInvalidRequest, err.Error()), http.StatusBadRequest
	}

	if err := svc.isAllowedPacket(packet); err != nil {
		Count("denied_method")
		logger.Errorf("%s denied: %v", packet, err)
		return getErrorResponseBytes(packetID(packet), codeMethodNotAllowed, err.Error()), http.StatusBadRequest
	}

	res, err := svc.Service.Call(ctx, packet)
	if err != nil {
		code, message := codeInternalError, err.Error()
		if payload, ok := ErrorPayloadOf(err); ok {
			code, message = payload.Code, payload.Message
		}
		return getErrorResponseBytes(packetID(packet), code, message), http.StatusInternalServerError
	}

	bts, err := json.Marshal(res)
	if err != nil {
		return getErrorResponseBytes(packetID(packet), codeInternalError, err.Error()), http.StatusInternalServerError
	}

	logger.Debugf("%s served", packet)
	return bts, http.StatusOK
}

// ServerWS answers one packet per text message until the connection or ctx
// ends. A read failure cancels the packet being served.
func (h *Server) ServerWS(ctx context.Context, svc *RunningService, conn *websocket.Conn) error {
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := logrus.WithFields(logrus.Fields{"service": svc.Name, "conn_id": utils.RandStringRunes(8)})

	messages := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer cancel()

		for {
			messageType, r, err := conn.NextReader()
			if err != nil {
				readErr <- err
				return
			}

			if messageType != websocket.TextMessage {
				logger.Infof("not a text message, skip")
				continue
			}

			reqBodyBytes, err := io.ReadAll(r)
			if err != nil {
				readErr <- err
				return
			}

			select {
			case messages <- reqBodyBytes:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case reqBodyBytes := <-messages:
			bts, _ := h.handle(ctx, svc, logger, reqBodyBytes)

			if err := conn.WriteMessage(websocket.TextMessage, bts); err != nil {
				return err
			}
		case <-ctx.Done():
			select {
			case err := <-readErr:
				return err
			default:
				return ctx.Err()
			}
		}
	}
}

func (h *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	running := h.Running()

	if strings.HasPrefix(req.URL.Path, "/ws/") {
		svc, err := running.Service(strings.TrimPrefix(req.URL.Path, "/ws/"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(err.Error()))
			Count("bad_request")
			return
		}

		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			logrus.Error(err)
			return
		}

		_ = h.ServerWS(req.Context(), svc, conn)
		return
	}

	if req.URL.Path == "/metrics" {
		h.metrics.ServeHTTP(w, req)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if req.URL.Path == "/health" {
		infoBts, _ := json.Marshal(getHealthInfo(running))
		_, _ = w.Write(infoBts)
		return
	}

	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Method Should Be POST"))
		Count("bad_request")
		return
	}

	if !strings.HasPrefix(req.URL.Path, "/http/") {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("protocol Should Be http or ws"))
		Count("bad_request")
		return
	}

	svc, err := running.Service(strings.TrimPrefix(req.URL.Path, "/http/"))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write(getErrorResponseBytes(nil, codeInvalidRequest, err.Error()))
		Count("bad_request")
		return
	}

	logger := logrus.WithFields(logrus.Fields{"service": svc.Name, "remote": req.RemoteAddr})

	startTime := time.Now()
	reqBodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write(getErrorResponseBytes(nil, codeInvalidRequest, errors.Wrap(err, "read body").Error()))
		return
	}

	bts, status := h.handle(req.Context(), svc, logger, reqBodyBytes)

	costInMs := time.Since(startTime).Milliseconds()
	if costInMs > 5000 {
		logger.Infof("slow request, cost: %d ms", costInMs)
	}

	w.WriteHeader(status)
	_, _ = w.Write(bts)
}
