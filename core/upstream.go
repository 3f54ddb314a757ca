package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// Fees of an HTTPS outcall on a 13 node subnet.
const (
	outcallBaseFee            uint64 = 49_140_000
	outcallRequestByteFee     uint64 = 5_200
	outcallMaxResponseByteFee uint64 = 10_400
)

// OutcallCost is the number of cycles an outcall carrying payload and
// reserving maxResponseBytes costs.
func OutcallCost(payload string, maxResponseBytes uint64) *uint256.Int {
	cost := uint256.NewInt(outcallBaseFee)

	requestFee := new(uint256.Int).Mul(uint256.NewInt(outcallRequestByteFee), uint256.NewInt(uint64(len(payload))))
	responseFee := new(uint256.Int).Mul(uint256.NewInt(outcallMaxResponseByteFee), uint256.NewInt(maxResponseBytes))

	return cost.Add(cost, requestFee).Add(cost, responseFee)
}

var _ Caller = &HttpCaller{}

// HttpCaller plays the metered call mechanism against plain JSON-RPC HTTP
// providers. It charges OutcallCost against the attached cycles and fails,
// rather than truncating, when a response is larger than declared.
type HttpCaller struct {
	client    *resty.Client
	providers map[string]string
}

// NewHttpCaller takes provider URLs keyed by RpcService.String(). Custom
// services bring their own URL.
func NewHttpCaller(providers map[string]string) *HttpCaller {
	urls := make(map[string]string, len(providers))
	for k, v := range providers {
		urls[k] = v
	}

	return &HttpCaller{
		client:    resty.New(),
		providers: urls,
	}
}

func (c *HttpCaller) resolve(service RpcService) (RpcApi, bool) {
	if service.Kind == ServiceCustom {
		if service.Custom == nil || service.Custom.URL == "" {
			return RpcApi{}, false
		}
		return *service.Custom, true
	}

	url, ok := c.providers[service.String()]
	if !ok {
		return RpcApi{}, false
	}

	return RpcApi{URL: url}, true
}

func (c *HttpCaller) Request(ctx context.Context, service RpcService, payload string, maxResponseBytes uint64, cycles *uint256.Int) (RequestResult, error) {
	if err := service.Validate(); err != nil {
		return RequestResult{Err: ValidationError{Message: err.Error()}}, nil
	}

	api, ok := c.resolve(service)
	if !ok {
		return RequestResult{Err: ProviderError{ProviderNotFound: true}}, nil
	}

	received := new(uint256.Int)
	if cycles != nil {
		received.Set(cycles)
	}

	cost := OutcallCost(payload, maxResponseBytes)
	if received.Lt(cost) {
		return RequestResult{Err: ProviderError{TooFewCycles: &TooFewCycles{Expected: cost, Received: received}}}, nil
	}

	logrus.Debugf("outcall to %v, max response bytes: %d, cost: %s", service, maxResponseBytes, cost.Dec())

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload)

	for _, header := range api.Headers {
		req.SetHeader(header.Name, header.Value)
	}

	resp, err := req.Post(api.URL)
	if err != nil {
		if ctx.Err() != nil {
			return RequestResult{}, ctx.Err()
		}

		logrus.Errorf("outcall to %v failed: %v", service, err)
		return RequestResult{}, &CallError{Code: RejectionSysTransient, Message: err.Error()}
	}

	body := resp.Body()

	if uint64(len(body)) > maxResponseBytes {
		return RequestResult{Err: HttpOutcallError{IcError: &IcError{
			Code:    RejectionSysFatal,
			Message: fmt.Sprintf("Http body exceeds size limit of %d bytes.", maxResponseBytes),
		}}}, nil
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return RequestResult{Err: HttpOutcallError{InvalidHttpJsonRpcResponse: &InvalidHttpJsonRpcResponse{
			Status: uint16(resp.StatusCode()),
			Body:   strings.TrimSpace(string(body)),
		}}}, nil
	}

	return RequestResult{Ok: string(body)}, nil
}
