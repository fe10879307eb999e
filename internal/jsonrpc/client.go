// Package jsonrpc is the thin JSON-RPC 2.0 transport shared by the
// pathfinder, tokeninfo and balance service clients. It is deliberately
// dumb: one method call, one HTTP POST, one decoded envelope. It carries no
// knowledge of any Circles-specific method name or payload shape.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

// Client POSTs JSON-RPC 2.0 envelopes to a single endpoint URL.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Int64
}

// New returns a Client targeting endpoint, using httpClient for transport
// (http.DefaultClient if nil).
func New(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return errors.Errorf("jsonrpc: server error %d: %s", e.Code, e.Message).Error()
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// Call issues a single JSON-RPC 2.0 request and decodes its result into out.
// out must be a pointer, or nil to discard the result.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	id := c.nextID.Add(1)
	body, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return errors.Wrap(err, "jsonrpc: marshal request")
	}

	log.Debug("jsonrpc request", "method", method, "endpoint", c.endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "jsonrpc: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("jsonrpc transport failure", "method", method, "err", err)
		return errors.Wrapf(err, "jsonrpc: call %s", method)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "jsonrpc: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("jsonrpc: call %s: unexpected status %d: %s", method, resp.StatusCode, raw)
	}

	var env response
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.Wrapf(err, "jsonrpc: decode envelope for %s", method)
	}
	if env.Error != nil {
		log.Warn("jsonrpc server error", "method", method, "code", env.Error.Code, "message", env.Error.Message)
		return env.Error
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return errors.Wrapf(err, "jsonrpc: decode result for %s", method)
	}
	return nil
}
