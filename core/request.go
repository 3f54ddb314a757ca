package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

var ErrEmptyPacket = errors.New("empty request packet")
var ErrInvalidRequest = errors.New("invalid json-rpc request")

// RequestMeta is the request metadata readable without decoding params.
type RequestMeta struct {
	Method string
	ID     json.RawMessage
}

// SerializedRequest is a request whose payload is already encoded.
type SerializedRequest struct {
	meta    RequestMeta
	payload json.RawMessage
}

func NewSerializedRequest(data RequestData) (SerializedRequest, error) {
	if data.JsonRpc == "" {
		data.JsonRpc = JsonRpcVersion
	}

	if data.Params == nil {
		data.Params = []interface{}{}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return SerializedRequest{}, errors.Wrapf(err, "encode %s request", data.Method)
	}

	return ParseSerializedRequest(payload)
}

// ParseSerializedRequest reads the method and id of an encoded request
// object and keeps the bytes untouched.
func ParseSerializedRequest(raw []byte) (SerializedRequest, error) {
	raw = bytes.TrimSpace(raw)
	if !gjson.ValidBytes(raw) {
		return SerializedRequest{}, errors.Wrap(ErrInvalidRequest, "malformed json")
	}

	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return SerializedRequest{}, errors.Wrap(ErrInvalidRequest, "request is not an object")
	}

	method := parsed.Get("method")
	if method.Type != gjson.String || method.Str == "" {
		return SerializedRequest{}, errors.Wrap(ErrInvalidRequest, "missing method")
	}

	meta := RequestMeta{Method: method.Str}
	if id := parsed.Get("id"); id.Exists() {
		meta.ID = json.RawMessage(id.Raw)
	}

	return SerializedRequest{meta: meta, payload: json.RawMessage(raw)}, nil
}

// NewRawRequest pairs a method name with a payload as given. The payload is
// not checked until the packet is serialized, where anything but a JSON
// object is refused.
func NewRawRequest(method string, payload []byte) SerializedRequest {
	return SerializedRequest{meta: RequestMeta{Method: method}, payload: payload}
}

func (r SerializedRequest) Meta() RequestMeta {
	return r.meta
}

func (r SerializedRequest) Method() string {
	return r.meta.Method
}

func (r SerializedRequest) Payload() json.RawMessage {
	return r.payload
}

// RequestPacket is a single request or an ordered batch.
type RequestPacket struct {
	single *SerializedRequest
	batch  []SerializedRequest
}

func SinglePacket(req SerializedRequest) RequestPacket {
	return RequestPacket{single: &req}
}

func BatchPacket(reqs ...SerializedRequest) RequestPacket {
	batch := make([]SerializedRequest, len(reqs))
	copy(batch, reqs)
	return RequestPacket{batch: batch}
}

// ParseRequestPacket splits a request body into a single request or a batch.
func ParseRequestPacket(raw []byte) (RequestPacket, error) {
	raw = bytes.TrimSpace(raw)
	if !gjson.ValidBytes(raw) {
		return RequestPacket{}, errors.Wrap(ErrInvalidRequest, "malformed json")
	}

	parsed := gjson.ParseBytes(raw)
	if !parsed.IsArray() {
		req, err := ParseSerializedRequest(raw)
		if err != nil {
			return RequestPacket{}, err
		}
		return SinglePacket(req), nil
	}

	members := parsed.Array()
	if len(members) == 0 {
		return RequestPacket{}, ErrEmptyPacket
	}

	batch := make([]SerializedRequest, 0, len(members))
	for i, member := range members {
		req, err := ParseSerializedRequest([]byte(member.Raw))
		if err != nil {
			return RequestPacket{}, errors.Wrapf(err, "batch member %d", i)
		}
		batch = append(batch, req)
	}

	return RequestPacket{batch: batch}, nil
}

func (p RequestPacket) IsBatch() bool {
	return p.single == nil
}

func (p RequestPacket) Len() int {
	if p.single != nil {
		return 1
	}

	return len(p.batch)
}

// Requests returns the packet members in order.
func (p RequestPacket) Requests() []SerializedRequest {
	if p.single != nil {
		return []SerializedRequest{*p.single}
	}

	return p.batch
}

func (p RequestPacket) Methods() []string {
	reqs := p.Requests()
	methods := make([]string, 0, len(reqs))
	for _, req := range reqs {
		methods = append(methods, req.meta.Method)
	}

	return methods
}

func (p RequestPacket) String() string {
	return strings.Join(p.Methods(), ",")
}

// Serialize renders the packet in its wire form.
func (p RequestPacket) Serialize() (string, error) {
	if p.Len() == 0 {
		return "", ErrEmptyPacket
	}

	for _, req := range p.Requests() {
		if !gjson.ParseBytes(req.payload).IsObject() {
			return "", errors.Wrapf(ErrInvalidRequest, "%s: payload is not a json object", req.Method())
		}
	}

	var bts []byte
	var err error

	if p.single != nil {
		bts, err = json.Marshal(p.single.payload)
	} else {
		payloads := make([]json.RawMessage, 0, len(p.batch))
		for _, req := range p.batch {
			payloads = append(payloads, req.payload)
		}
		bts, err = json.Marshal(payloads)
	}

	if err != nil {
		return "", errors.Wrap(err, "serialize request packet")
	}

	return string(bts), nil
}
