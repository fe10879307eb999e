// Package balance is the balance service client (spec §6 "Balance
// service"): per-avatar total and per-token balance queries, with the
// wire's decimal-string amounts normalized into amount.U256 the way
// original_source's TokenHolderNormalized does for demurraged totals.
package balance

import (
	"context"
	"net/http"

	"github.com/deluXtreme/circles-go/address"
	"github.com/deluXtreme/circles-go/amount"
	"github.com/deluXtreme/circles-go/cerrors"
	"github.com/deluXtreme/circles-go/internal/jsonrpc"
)

// Entry is one token's balance for an avatar (spec §3 "Balance service").
// StaticAtto is only populated for wrapped/inflationary holdings; the core
// uses it exclusively for the wrapper reconciler's leftover computation
// (spec §4.4 step 4).
type Entry struct {
	TokenID        address.Address
	DemurragedAtto amount.U256
	StaticAtto     *amount.U256
}

// Client queries the balance service over JSON-RPC 2.0
// (circles_getTotalBalance / circlesV2_getTotalBalance,
// circles_getTokenBalances / circlesV2_getTokenBalances), grounded on
// original_source/crates/rpc/src/methods/{balance.rs,token.rs}.
type Client struct {
	rpc *jsonrpc.Client
	// UseV2 selects the circlesV2_* method variant; original_source
	// selects this per call via a use_v2 argument, but every caller in
	// this library targets a single protocol version for its lifetime.
	UseV2 bool
}

// NewClient returns a Client targeting endpoint.
func NewClient(endpoint string, httpClient *http.Client, useV2 bool) *Client {
	return &Client{rpc: jsonrpc.New(endpoint, httpClient), UseV2: useV2}
}

func (c *Client) totalBalanceMethod() string {
	if c.UseV2 {
		return "circlesV2_getTotalBalance"
	}
	return "circles_getTotalBalance"
}

func (c *Client) tokenBalancesMethod() string {
	if c.UseV2 {
		return "circlesV2_getTokenBalances"
	}
	return "circles_getTokenBalances"
}

// TotalBalance returns the avatar's aggregate demurraged balance across all
// its tokens.
func (c *Client) TotalBalance(ctx context.Context, avatar address.Address) (amount.U256, error) {
	var raw string
	method := c.totalBalanceMethod()
	if err := c.rpc.Call(ctx, method, []any{avatar.String(), false}, &raw); err != nil {
		return amount.Zero256, &cerrors.ExternalServiceError{Source: "balance", Detail: method, Cause: err}
	}
	v, err := amount.ParseDecimalU256(raw)
	if err != nil {
		// TokenHolderNormalized-style normalization: an unparsable wire
		// value degrades to zero rather than failing the whole call.
		return amount.Zero256, nil
	}
	return v, nil
}

type wireTokenBalance struct {
	TokenID        string `json:"token_id"`
	DemurragedAtto string `json:"demurraged_atto"`
	StaticAtto     string `json:"static_atto"`
}

// TokenBalances returns every per-token balance entry for avatar.
func (c *Client) TokenBalances(ctx context.Context, avatar address.Address) ([]Entry, error) {
	var wire []wireTokenBalance
	method := c.tokenBalancesMethod()
	if err := c.rpc.Call(ctx, method, []any{avatar.String(), false}, &wire); err != nil {
		return nil, &cerrors.ExternalServiceError{Source: "balance", Detail: method, Cause: err}
	}

	out := make([]Entry, 0, len(wire))
	for _, w := range wire {
		tokenID, err := address.ParseAddress(w.TokenID)
		if err != nil {
			return nil, &cerrors.ExternalServiceError{Source: "balance", Detail: "invalid token_id", Cause: err}
		}
		demurraged, err := amount.ParseDecimalU256(w.DemurragedAtto)
		if err != nil {
			demurraged = amount.Zero256
		}
		entry := Entry{TokenID: tokenID, DemurragedAtto: demurraged}
		if w.StaticAtto != "" {
			if v, err := amount.ParseDecimalU256(w.StaticAtto); err == nil {
				entry.StaticAtto = &v
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// StaticBalance implements wrapper.BalanceLookup: it returns the static
// balance of avatar's holding of wrapperToken, or zero if no entry is
// found (e.g. the avatar never held that wrapper).
func (c *Client) StaticBalance(ctx context.Context, avatar, wrapperToken address.Address) (amount.U256, error) {
	entries, err := c.TokenBalances(ctx, avatar)
	if err != nil {
		return amount.Zero256, err
	}
	for _, e := range entries {
		if e.TokenID == wrapperToken && e.StaticAtto != nil {
			return *e.StaticAtto, nil
		}
	}
	return amount.Zero256, nil
}
