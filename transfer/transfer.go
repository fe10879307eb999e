// Package transfer implements C6, the transfer orchestrator: the single
// entry point that turns a (from, to, amount) intent into an ordered list
// of prepared on-chain calls, composing the pathfinder adapter, the
// wrapper reconciler, the flow-matrix builder and the ABI encoder (spec
// §4.6).
//
// Grounded on
// original_source/crates/transfers/src/builder.rs's TransferBuilder:
// construct_advanced_transfer, assemble_transactions_inner,
// truncate_to_six_decimals, self_unwrap, needs_approval.
package transfer

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/deluXtreme/circles-go/address"
	"github.com/deluXtreme/circles-go/amount"
	"github.com/deluXtreme/circles-go/cerrors"
	"github.com/deluXtreme/circles-go/contracts/settlement"
	"github.com/deluXtreme/circles-go/flowmatrix"
	"github.com/deluXtreme/circles-go/pathfinder"
	"github.com/deluXtreme/circles-go/tokeninfo"
	"github.com/deluXtreme/circles-go/wrapper"
)

// quantizationUnit is the protocol's six-decimal resolution: every target
// flow sent to the pathfinder is truncated to a multiple of this (spec
// §4.6 step 1).
var quantizationUnit = amount.FromUint64(1_000_000_000_000)

// Config is the fixed, plain-value configuration for a deployment: service
// endpoints and the settlement contract's address. Grounded on
// original_source/crates/types/src/config.rs's CirclesConfig, trimmed to
// the fields this transfer pipeline actually consumes — the SDK-level
// concerns (name registry, group factory, invitation contracts) have no
// role in composing a transfer and are not carried here. CirclesRPCURL and
// PathfinderURL are informational: a host application uses them to
// construct the pathfinder.Client/tokeninfo.Client/balance.Client it then
// passes into NewBuilder, matching §9's "model external services as
// capability interfaces" — Builder itself never dials out.
type Config struct {
	CirclesRPCURL string
	PathfinderURL string
	V2HubAddress  address.Address
}

// ApprovalChecker reports whether an operator is already authorized to
// operate an avatar's tokens on the settlement Hub. It models the one
// on-chain *read* the orchestrator needs (spec §9's "a builder constructed
// with check_approval = false must still emit a conservative approval
// call"); circles-go never issues eth_calls itself (spec §1 Non-goals), so
// this is a capability interface a host application backs with its own
// RPC client, exactly like pathfinder.Client/tokeninfo.Resolver/
// wrapper.BalanceLookup.
type ApprovalChecker interface {
	IsApprovedForAll(ctx context.Context, operator address.Address) (bool, error)
}

// PathFinder is the capability interface C5 is consumed through (spec §9
// "External service abstraction"); *pathfinder.Client satisfies it, and
// tests substitute an in-memory fake.
type PathFinder interface {
	FindPath(ctx context.Context, params pathfinder.FindPathParams) (*pathfinder.Result, error)
}

// PreparedTransaction is one call in the ordered list a Builder returns
// (spec §3 "Prepared transaction", §6).
type PreparedTransaction struct {
	To    address.Address
	Data  []byte
	Value amount.U256
}

// Options configures a single BuildTransfer call (spec §6 configuration
// table).
type Options struct {
	UseWrappedBalances *bool
	FromTokens         []address.Address
	ToTokens           []address.Address
	ExcludeFromTokens  []address.Address
	ExcludeToTokens    []address.Address
	SimulatedBalances  []pathfinder.SimulatedBalance
	MaxTransfers       *uint32
	// TxData is an opaque payload attached to the emitted stream (spec §4.6
	// step 6).
	TxData []byte
	// AnchorOverride overrides the balance lookup used for inflationary
	// leftover computation (spec §9 open question 2); see
	// wrapper.Options.AnchorOverride.
	AnchorOverride map[address.Address]amount.U256
	// VerifyNetting opts into flowmatrix.CheckNetting as an extra diagnostic
	// over the reconciled path before the matrix is built.
	VerifyNetting bool
}

// Builder assembles transfers. It holds no mutable state beyond the
// approval-check policy switch set at construction (spec §4.6 "State:
// none mutable").
type Builder struct {
	config          Config
	pathfinderClt   PathFinder
	resolver        tokeninfo.Resolver
	balances        wrapper.BalanceLookup
	approvalChecker ApprovalChecker
	checkApproval   bool
}

// NewBuilder wires the external collaborators into a Builder. balances and
// approvalChecker may be nil: a nil balances lookup degrades inflationary
// leftover to zero (see wrapper.Options.AnchorOverride for the exact-parity
// alternative); a nil approvalChecker behaves as if check_approval were
// false, per §9's conservative default.
func NewBuilder(config Config, pathfinderClt PathFinder, resolver tokeninfo.Resolver, balances wrapper.BalanceLookup, approvalChecker ApprovalChecker) *Builder {
	return &Builder{
		config:          config,
		pathfinderClt:   pathfinderClt,
		resolver:        resolver,
		balances:        balances,
		approvalChecker: approvalChecker,
		checkApproval:   true,
	}
}

// WithApprovalCheck controls whether BuildTransfer queries the
// ApprovalChecker before deciding whether to prepend an approval call
// (default: true). Mirrors
// TransferBuilder::with_approval_check in the source.
func (b *Builder) WithApprovalCheck(check bool) *Builder {
	b.checkApproval = check
	return b
}

// BuildTransfer implements C6 end to end (spec §4.6 steps 1-9).
func (b *Builder) BuildTransfer(ctx context.Context, from, to address.Address, requested amount.U256, opts Options) ([]PreparedTransaction, error) {
	// Step 2: self-unwrap fast path.
	if from == to && len(opts.FromTokens) == 1 && len(opts.ToTokens) == 1 && opts.FromTokens[0] != opts.ToTokens[0] {
		tx, err := b.selfUnwrap(ctx, opts.FromTokens[0], requested)
		if err != nil {
			return nil, err
		}
		if tx != nil {
			return []PreparedTransaction{*tx}, nil
		}
	}

	// Step 1: quantization.
	targetFlow := amount.TruncateToMultiple(requested, quantizationUnit)

	// Step 3: path fetch.
	result, err := b.pathfinderClt.FindPath(ctx, pathfinder.FindPathParams{
		From:               from,
		To:                 to,
		TargetFlow:         targetFlow,
		UseWrappedBalances: opts.UseWrappedBalances,
		FromTokens:         opts.FromTokens,
		ToTokens:           opts.ToTokens,
		ExcludeFromTokens:  opts.ExcludeFromTokens,
		ExcludeToTokens:    opts.ExcludeToTokens,
		SimulatedBalances:  opts.SimulatedBalances,
		MaxTransfers:       opts.MaxTransfers,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Steps) == 0 {
		return nil, &cerrors.NoPath{From: from, To: to}
	}
	if result.MaxFlow.Cmp(targetFlow) < 0 {
		return nil, &cerrors.InsufficientFlow{Available: result.MaxFlow.String(), Requested: targetFlow.String()}
	}

	// Step 4: reconcile wrappers. Unset UseWrappedBalances defaults to
	// permissive (true): the source's default Options value makes this
	// true, but its partial-options code path instead defaults an unset
	// field to false — an inconsistency §9 flags rather than resolves; this
	// implementation picks the single, always-permissive-unless-explicitly-
	// false reading everywhere options are provided.
	allowWrapped := opts.UseWrappedBalances == nil || *opts.UseWrappedBalances
	reconciled, err := wrapper.Reconcile(ctx, from, result.Steps, b.resolver, b.balances, wrapper.Options{
		AllowWrapped:   allowWrapped,
		AnchorOverride: opts.AnchorOverride,
	})
	if err != nil {
		return nil, err
	}

	if opts.VerifyNetting {
		if err := flowmatrix.CheckNetting(from, to, reconciled.RewrittenPath); err != nil {
			return nil, err
		}
	}

	// Step 5: build matrix with expected_value = max_flow (spec §9 open
	// question 1: the source asserts max_flow against the quantized
	// target_flow in step 3, then builds the matrix against the reported
	// max_flow rather than the caller's requested amount).
	fm, err := flowmatrix.Build(from, to, result.MaxFlow, reconciled.RewrittenPath)
	if err != nil {
		return nil, err
	}

	// Step 6: inject custom stream data.
	if opts.TxData != nil && len(fm.Streams) > 0 {
		fm.Streams[0].Data = opts.TxData
	}

	settlementData, err := settlement.EncodeOperateFlowMatrix(fm)
	if err != nil {
		return nil, errors.Wrap(err, "transfer: encode operateFlowMatrix")
	}
	settlementTx := PreparedTransaction{To: b.config.V2HubAddress, Data: settlementData, Value: amount.Zero256}

	unwrapTxs, err := encodeUnwraps(reconciled.Unwraps)
	if err != nil {
		return nil, err
	}
	rewrapTxs, err := encodeRewraps(b.config.V2HubAddress, reconciled.Rewraps)
	if err != nil {
		return nil, err
	}

	// Step 7: approval gating.
	needsApproval, err := b.needsApproval(ctx, from)
	if err != nil {
		return nil, err
	}

	// Step 8: assemble sequence [approval?] ++ unwraps ++ [settlement] ++ rewraps.
	txs := make([]PreparedTransaction, 0, len(unwrapTxs)+len(rewrapTxs)+2)
	if needsApproval {
		approveData, err := settlement.EncodeSetApprovalForAll(from, true)
		if err != nil {
			return nil, errors.Wrap(err, "transfer: encode setApprovalForAll")
		}
		txs = append(txs, PreparedTransaction{To: b.config.V2HubAddress, Data: approveData, Value: amount.Zero256})
	}
	txs = append(txs, unwrapTxs...)
	txs = append(txs, settlementTx)
	txs = append(txs, rewrapTxs...)

	return txs, nil
}

// needsApproval implements step 7's gating policy (spec §9 "Approval
// gating policy"): check_approval = false (no checker wired, or the
// caller's WithApprovalCheck(false)) always emits a conservative approval
// call, matching the source's fail-safe default.
func (b *Builder) needsApproval(ctx context.Context, from address.Address) (bool, error) {
	if !b.checkApproval || b.approvalChecker == nil {
		return true, nil
	}
	approved, err := b.approvalChecker.IsApprovedForAll(ctx, from)
	if err != nil {
		// The source treats a failed on-chain probe as "assume not
		// approved" rather than failing the whole build.
		return true, nil
	}
	return !approved, nil
}

// selfUnwrap implements step 2: with no pathfinding, classify fromToken via
// the resolver and, if it is a known wrapper, emit its unwrap call for the
// full requested amount. Returns (nil, nil) when fromToken is not a
// recognized wrapper so BuildTransfer falls through to the normal flow,
// mirroring the source's Option<TransferTx> return.
func (b *Builder) selfUnwrap(ctx context.Context, fromToken address.Address, requested amount.U256) (*PreparedTransaction, error) {
	infoMap, err := b.resolver.ResolveBatch(ctx, []address.Address{fromToken})
	if err != nil {
		return nil, err
	}
	info, ok := infoMap[fromToken]
	if !ok {
		return nil, nil
	}

	switch info.Kind {
	case tokeninfo.WrapperDemurraged:
		data, err := settlement.EncodeUnwrap(wrapper.UnwrapCall{Wrapper: fromToken, Amount: requested})
		if err != nil {
			return nil, errors.Wrap(err, "transfer: encode self-unwrap")
		}
		return &PreparedTransaction{To: fromToken, Data: data, Value: amount.Zero256}, nil

	case tokeninfo.WrapperInflationary:
		anchor := time.Now().Unix()
		if info.AnchorTimestamp != nil {
			anchor = *info.AnchorTimestamp
		}
		staticAmt := wrapper.DemurragedToStatic(requested, anchor)
		data, err := settlement.EncodeUnwrap(wrapper.UnwrapCall{Wrapper: fromToken, Amount: staticAmt})
		if err != nil {
			return nil, errors.Wrap(err, "transfer: encode self-unwrap")
		}
		return &PreparedTransaction{To: fromToken, Data: data, Value: amount.Zero256}, nil

	default:
		return nil, nil
	}
}

func encodeUnwraps(calls []wrapper.UnwrapCall) ([]PreparedTransaction, error) {
	out := make([]PreparedTransaction, 0, len(calls))
	for _, c := range calls {
		data, err := settlement.EncodeUnwrap(c)
		if err != nil {
			return nil, errors.Wrap(err, "transfer: encode unwrap")
		}
		out = append(out, PreparedTransaction{To: c.Wrapper, Data: data, Value: amount.Zero256})
	}
	return out, nil
}

func encodeRewraps(hub address.Address, calls []wrapper.RewrapCall) ([]PreparedTransaction, error) {
	out := make([]PreparedTransaction, 0, len(calls))
	for _, c := range calls {
		data, err := settlement.EncodeRewrap(c)
		if err != nil {
			return nil, errors.Wrap(err, "transfer: encode rewrap")
		}
		out = append(out, PreparedTransaction{To: hub, Data: data, Value: amount.Zero256})
	}
	return out, nil
}
