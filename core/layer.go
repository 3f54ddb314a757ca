package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ivanzzeth/evm-rpc-transport/utils"
)

// Layer decorates a Service.
type Layer func(next Service) Service

// Stack wraps svc with the layers, the first layer ending up outermost.
func Stack(svc Service, layers ...Layer) Service {
	for i := len(layers) - 1; i >= 0; i-- {
		svc = layers[i](svc)
	}

	return svc
}

// ServiceFunc turns a call function into an always ready Service.
type ServiceFunc func(ctx context.Context, packet RequestPacket) (ResponsePacket, error)

func (f ServiceFunc) Ready() error {
	return nil
}

func (f ServiceFunc) Call(ctx context.Context, packet RequestPacket) (ResponsePacket, error) {
	return f(ctx, packet)
}

type layered struct {
	next Service
	call ServiceFunc
}

func (l layered) Ready() error {
	return l.next.Ready()
}

func (l layered) Call(ctx context.Context, packet RequestPacket) (ResponsePacket, error) {
	return l.call(ctx, packet)
}

func LoggingLayer(logger logrus.FieldLogger) Layer {
	return func(next Service) Service {
		return layered{next: next, call: func(ctx context.Context, packet RequestPacket) (ResponsePacket, error) {
			entry := logger.WithField("call_id", utils.RandStringRunes(8))
			start := time.Now()

			res, err := next.Call(ctx, packet)

			if err != nil {
				entry.Errorf("%s failed after %v: %v", packet, time.Since(start), err)
				return res, err
			}

			entry.Infof("%s done in %v", packet, time.Since(start))
			return res, nil
		}}
	}
}

func MetricsLayer() Layer {
	return func(next Service) Service {
		return layered{next: next, call: func(ctx context.Context, packet RequestPacket) (ResponsePacket, error) {
			for _, method := range packet.Methods() {
				Count(method)
			}

			start := time.Now()
			res, err := next.Call(ctx, packet)
			costInMs := float64(time.Since(start).Nanoseconds()) / 1e6

			method := packet.String()
			if packet.IsBatch() {
				method = "batch"
			}
			Time(method, costInMs)

			var transportErr *TransportError
			if errors.As(err, &transportErr) {
				CountError(transportErr.Kind)
			} else if err == nil {
				bts, _ := res.MarshalJSON()
				if !utils.NoErrorFieldInJSON(string(bts)) {
					Count("rpc_error")
				}
			}

			return res, err
		}}
	}
}
