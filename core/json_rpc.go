package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const JsonRpcVersion = "2.0"

type RequestData struct {
	JsonRpc string        `json:"jsonrpc"`
	ID      interface{}   `json:"id,omitempty"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type Response struct {
	JsonRpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Err     *ErrorPayload   `json:"error,omitempty"`
}

// ErrorPayload is the JSON-RPC error object.
type ErrorPayload struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ErrorPayload) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// ResponsePacket mirrors the shape of the request packet it answers:
// a single response object or a batch of them.
type ResponsePacket struct {
	Single *Response
	Batch  []Response
}

func (p ResponsePacket) IsBatch() bool {
	return p.Single == nil
}

// Responses returns the packet members in order, a single response as a one
// element slice.
func (p ResponsePacket) Responses() []Response {
	if p.Single != nil {
		return []Response{*p.Single}
	}

	return p.Batch
}

// UnmarshalJSON accepts a response object or an array of them. Every member
// must carry exactly one of result and error.
func (p *ResponsePacket) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var members []json.RawMessage
		if err := json.Unmarshal(trimmed, &members); err != nil {
			return err
		}

		batch := make([]Response, 0, len(members))
		for i, member := range members {
			res, err := decodeResponse(member)
			if err != nil {
				return errors.Wrapf(err, "batch member %d", i)
			}
			batch = append(batch, res)
		}

		p.Single, p.Batch = nil, batch
		return nil
	}

	single, err := decodeResponse(trimmed)
	if err != nil {
		return err
	}
	p.Single, p.Batch = &single, nil
	return nil
}

func decodeResponse(data []byte) (Response, error) {
	var res Response

	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return res, errors.Errorf("response is not an object: %.64s", data)
	}

	result, errField := parsed.Get("result"), parsed.Get("error")
	if result.Exists() == errField.Exists() {
		return res, errors.New("response must have exactly one of result and error")
	}

	if errField.Exists() && !errField.IsObject() {
		return res, errors.New("response error is not an object")
	}

	if err := json.Unmarshal(data, &res); err != nil {
		return res, err
	}

	return res, nil
}

func (p ResponsePacket) MarshalJSON() ([]byte, error) {
	if p.Single != nil {
		return json.Marshal(p.Single)
	}

	if p.Batch == nil {
		return []byte("[]"), nil
	}

	return json.Marshal(p.Batch)
}
