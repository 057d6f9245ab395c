package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Version is the only JSON-RPC version spoken.
const Version = "2.0"

// Standard error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

var (
	// ErrNotRPC is returned by Parse for payloads that are neither a request
	// nor a response.
	ErrNotRPC = errors.New("jsonrpc: payload is not a request or response")
)

// NewID returns unixMillis*1000 plus three random digits.
func NewID() int64 {
	return IDAt(time.Now())
}

// IDAt is NewID for a fixed clock.
func IDAt(t time.Time) int64 {
	return t.UnixMilli()*1000 + rand.Int64N(1000)
}

// Timestamp extracts the unix-millis timestamp embedded in id.
func Timestamp(id int64) int64 { return id / 1000 }

// Request is a JSON-RPC request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  Value  `json:"params"`
}

// NewRequest builds a request with a fresh id.
func NewRequest(method string, params any) (Request, error) {
	p, err := NewValue(params)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s params: %w", method, err)
	}
	return Request{JSONRPC: Version, ID: NewID(), Method: method, Params: p}, nil
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *Value `json:"data,omitempty"`
}

func (e *Error) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// Response is a JSON-RPC response carrying either Result or Error.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Result  *Value `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// NewResult builds a success response.
func NewResult(id int64, result any) (Response, error) {
	v, err := NewValue(result)
	if err != nil {
		return Response{}, err
	}
	return Response{JSONRPC: Version, ID: id, Result: &v}, nil
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id int64, code int, message string) Response {
	return Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message}}
}

// IsError reports whether the response carries an error.
func (r Response) IsError() bool { return r.Error != nil }

// envelope is the union of request and response fields.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

// Parse classifies data as a request or a response. Exactly one of the
// returned pointers is non-nil on success.
func Parse(data []byte) (*Request, *Response, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, err
	}
	if env.JSONRPC != Version || env.ID == nil {
		return nil, nil, ErrNotRPC
	}
	if env.Method != "" {
		req := &Request{JSONRPC: env.JSONRPC, ID: *env.ID, Method: env.Method}
		if len(env.Params) > 0 {
			if err := req.Params.UnmarshalJSON(env.Params); err != nil {
				return nil, nil, err
			}
		}
		return req, nil, nil
	}
	if env.Error != nil {
		return nil, &Response{JSONRPC: env.JSONRPC, ID: *env.ID, Error: env.Error}, nil
	}
	if len(env.Result) > 0 {
		var v Value
		if err := v.UnmarshalJSON(env.Result); err != nil {
			return nil, nil, err
		}
		return nil, &Response{JSONRPC: env.JSONRPC, ID: *env.ID, Result: &v}, nil
	}
	return nil, nil, ErrNotRPC
}
