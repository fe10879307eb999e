package tokeninfo

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/deluXtreme/circles-go/address"
	"github.com/deluXtreme/circles-go/cerrors"
	"github.com/deluXtreme/circles-go/internal/jsonrpc"
)

// Client resolves token info over the Circles JSON-RPC service
// (circles_getTokenInfoBatch), grounded on
// original_source/crates/rpc/src/methods/token_info.rs.
type Client struct {
	rpc *jsonrpc.Client
}

// NewClient returns a Client targeting endpoint.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	return &Client{rpc: jsonrpc.New(endpoint, httpClient)}
}

type wireTokenInfo struct {
	Token     string `json:"token"`
	Owner     string `json:"token_owner"`
	TokenType string `json:"token_type"`
	Timestamp int64  `json:"timestamp"`
}

// ResolveBatch implements Resolver over circles_getTokenInfoBatch.
func (c *Client) ResolveBatch(ctx context.Context, tokens []address.Address) (map[address.Address]TokenInfo, error) {
	if len(tokens) == 0 {
		return map[address.Address]TokenInfo{}, nil
	}

	params := make([]string, len(tokens))
	for i, a := range tokens {
		params[i] = a.String()
	}

	var wire []wireTokenInfo
	if err := c.rpc.Call(ctx, "circles_getTokenInfoBatch", []any{params}, &wire); err != nil {
		return nil, &cerrors.ExternalServiceError{Source: "token-info", Detail: "circles_getTokenInfoBatch", Cause: err}
	}

	out := make(map[address.Address]TokenInfo, len(wire))
	for _, w := range wire {
		tokenAddr, err := address.ParseAddress(w.Token)
		if err != nil {
			return nil, &cerrors.ExternalServiceError{Source: "token-info", Detail: "invalid token address", Cause: errors.WithStack(err)}
		}
		owner, err := address.ParseAddress(w.Owner)
		if err != nil {
			return nil, &cerrors.ExternalServiceError{Source: "token-info", Detail: "invalid underlying avatar address", Cause: errors.WithStack(err)}
		}

		info := TokenInfo{
			TokenAddress:     tokenAddr,
			UnderlyingAvatar: owner,
			Kind:             classify(w.TokenType),
		}
		if w.Timestamp > 0 {
			ts := w.Timestamp
			info.AnchorTimestamp = &ts
		}
		out[tokenAddr] = info
	}
	return out, nil
}
