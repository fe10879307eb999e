// Package pathfinder is the path client adapter (C5, spec §4.5): a thin
// normalizer over the remote max-flow pathfinder's JSON-RPC response. It
// never discovers paths itself (spec §1 Non-goals) — it only parses,
// narrows and preserves order.
package pathfinder

import (
	"context"
	"net/http"

	"github.com/deluXtreme/circles-go/address"
	"github.com/deluXtreme/circles-go/amount"
	"github.com/deluXtreme/circles-go/cerrors"
	"github.com/deluXtreme/circles-go/flowmatrix"
	"github.com/deluXtreme/circles-go/internal/jsonrpc"
)

// SimulatedBalance overrides a holder's observable balance of a token for
// path planning purposes (spec §6 Configuration "simulated_balances").
type SimulatedBalance struct {
	Holder    address.Address
	Token     address.Address
	Amount    amount.U256
	IsWrapped bool
	IsStatic  bool
}

// FindPathParams are the parameters passed through to circlesV2_findPath
// (spec §4.5). Unknown/unsupported fields are serialized but never
// interpreted by this package.
type FindPathParams struct {
	From               address.Address
	To                 address.Address
	TargetFlow         amount.U256
	UseWrappedBalances *bool
	FromTokens         []address.Address
	ToTokens           []address.Address
	ExcludeFromTokens  []address.Address
	ExcludeToTokens    []address.Address
	SimulatedBalances  []SimulatedBalance
	MaxTransfers       *uint32
}

// Result is the normalized pathfinder response (spec §3 "Path"): ordered
// steps plus the reported max flow. The remote service's order is
// preserved verbatim.
type Result struct {
	MaxFlow amount.U256
	Steps   []flowmatrix.Step
}

// Client queries a remote pathfinder over JSON-RPC 2.0
// (circlesV2_findPath), grounded on
// original_source/crates/rpc/src/methods/pathfinder.rs.
type Client struct {
	rpc *jsonrpc.Client
}

// NewClient returns a Client targeting endpoint.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	return &Client{rpc: jsonrpc.New(endpoint, httpClient)}
}

type wireSimulatedBalance struct {
	Holder    string `json:"holder"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	IsWrapped bool   `json:"is_wrapped"`
	IsStatic  bool   `json:"is_static"`
}

type wireFindPathParams struct {
	From               string                 `json:"from"`
	To                 string                 `json:"to"`
	TargetFlow         string                 `json:"target_flow"`
	UseWrappedBalances *bool                  `json:"use_wrapped_balances,omitempty"`
	FromTokens         []string               `json:"from_tokens,omitempty"`
	ToTokens           []string               `json:"to_tokens,omitempty"`
	ExcludeFromTokens  []string               `json:"exclude_from_tokens,omitempty"`
	ExcludeToTokens    []string               `json:"exclude_to_tokens,omitempty"`
	SimulatedBalances  []wireSimulatedBalance `json:"simulated_balances,omitempty"`
	MaxTransfers       *uint32                `json:"max_transfers,omitempty"`
}

type wireTransferStep struct {
	From       string `json:"from"`
	To         string `json:"to"`
	TokenOwner string `json:"token_owner"`
	Value      string `json:"value"`
}

type wirePathfindingResult struct {
	MaxFlow   string             `json:"max_flow"`
	Transfers []wireTransferStep `json:"transfers"`
}

func toWireAddrs(addrs []address.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func toWireParams(p FindPathParams) wireFindPathParams {
	w := wireFindPathParams{
		From:               p.From.String(),
		To:                 p.To.String(),
		TargetFlow:         p.TargetFlow.String(),
		UseWrappedBalances: p.UseWrappedBalances,
		FromTokens:         toWireAddrs(p.FromTokens),
		ToTokens:           toWireAddrs(p.ToTokens),
		ExcludeFromTokens:  toWireAddrs(p.ExcludeFromTokens),
		ExcludeToTokens:    toWireAddrs(p.ExcludeToTokens),
		MaxTransfers:       p.MaxTransfers,
	}
	for _, sb := range p.SimulatedBalances {
		w.SimulatedBalances = append(w.SimulatedBalances, wireSimulatedBalance{
			Holder:    sb.Holder.String(),
			Token:     sb.Token.String(),
			Amount:    sb.Amount.String(),
			IsWrapped: sb.IsWrapped,
			IsStatic:  sb.IsStatic,
		})
	}
	return w
}

// FindPath calls circlesV2_findPath and normalizes the response. Each
// transfer's value is narrowed into the 192-bit domain at this boundary;
// an out-of-range value fails the whole call with AmountOutOfDomain
// (spec §4.5, §4.2 step 4's widening rule, §9 "Amount widths").
func (c *Client) FindPath(ctx context.Context, params FindPathParams) (*Result, error) {
	var wire wirePathfindingResult
	if err := c.rpc.Call(ctx, "circlesV2_findPath", []any{toWireParams(params)}, &wire); err != nil {
		return nil, &cerrors.ExternalServiceError{Source: "pathfinder", Detail: "circlesV2_findPath", Cause: err}
	}

	maxFlow, err := amount.ParseDecimalU256(wire.MaxFlow)
	if err != nil {
		return nil, &cerrors.ExternalServiceError{Source: "pathfinder", Detail: "invalid max_flow", Cause: err}
	}

	steps := make([]flowmatrix.Step, len(wire.Transfers))
	for i, t := range wire.Transfers {
		from, err := address.ParseAddress(t.From)
		if err != nil {
			return nil, &cerrors.ExternalServiceError{Source: "pathfinder", Detail: "invalid transfer.from", Cause: err}
		}
		to, err := address.ParseAddress(t.To)
		if err != nil {
			return nil, &cerrors.ExternalServiceError{Source: "pathfinder", Detail: "invalid transfer.to", Cause: err}
		}
		owner, err := address.ParseAddress(t.TokenOwner)
		if err != nil {
			return nil, &cerrors.ExternalServiceError{Source: "pathfinder", Detail: "invalid transfer.token_owner", Cause: err}
		}
		value, err := amount.ParseDecimalU192(t.Value)
		if err != nil {
			return nil, err // already *cerrors.AmountOutOfDomain
		}
		steps[i] = flowmatrix.Step{From: from, To: to, TokenOwner: owner, Value: value}
	}

	return &Result{MaxFlow: maxFlow, Steps: steps}, nil
}

// AvailableFlow runs the path fetch and reports (max_flow, steps) without
// building a matrix — a preview helper for callers who want to check
// liquidity before committing to a full transfer build.
// Grounded on original_source/crates/pathfinder/src/convenience.rs.
func (c *Client) AvailableFlow(ctx context.Context, params FindPathParams) (amount.U256, []flowmatrix.Step, error) {
	res, err := c.FindPath(ctx, params)
	if err != nil {
		return amount.Zero256, nil, err
	}
	return res.MaxFlow, res.Steps, nil
}
