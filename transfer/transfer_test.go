package transfer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deluXtreme/circles-go/address"
	"github.com/deluXtreme/circles-go/amount"
	"github.com/deluXtreme/circles-go/cerrors"
	"github.com/deluXtreme/circles-go/flowmatrix"
	"github.com/deluXtreme/circles-go/pathfinder"
	"github.com/deluXtreme/circles-go/tokeninfo"
)

func a(b byte) address.Address {
	var addr address.Address
	addr[len(addr)-1] = b
	return addr
}

type fakePathFinder struct {
	result  *pathfinder.Result
	err     error
	called  bool
	lastReq pathfinder.FindPathParams
}

func (f *fakePathFinder) FindPath(ctx context.Context, params pathfinder.FindPathParams) (*pathfinder.Result, error) {
	f.called = true
	f.lastReq = params
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeResolver struct {
	infos map[address.Address]tokeninfo.TokenInfo
}

func (f *fakeResolver) ResolveBatch(ctx context.Context, tokens []address.Address) (map[address.Address]tokeninfo.TokenInfo, error) {
	out := map[address.Address]tokeninfo.TokenInfo{}
	for _, t := range tokens {
		if info, ok := f.infos[t]; ok {
			out[t] = info
		}
	}
	return out, nil
}

type fakeApproval struct {
	approved bool
	err      error
	called   bool
}

func (f *fakeApproval) IsApprovedForAll(ctx context.Context, operator address.Address) (bool, error) {
	f.called = true
	return f.approved, f.err
}

func v192(t *testing.T, v uint64) amount.U192 {
	t.Helper()
	u, err := amount.FromUint64(v).NarrowToU192()
	require.NoError(t, err)
	return u
}

func TestBuildTransferTrivialSelfHopPrependsApproval(t *testing.T) {
	s, k := a(1), a(2)
	one18 := amount.FromUint64(1_000_000_000_000_000_000)

	pf := &fakePathFinder{result: &pathfinder.Result{
		MaxFlow: one18,
		Steps: []flowmatrix.Step{
			{From: s, To: k, TokenOwner: s, Value: v192(t, 1_000_000_000_000_000_000)},
		},
	}}
	resolver := &fakeResolver{infos: map[address.Address]tokeninfo.TokenInfo{}}
	approval := &fakeApproval{approved: false}

	b := NewBuilder(Config{V2HubAddress: a(99)}, pf, resolver, nil, approval)
	txs, err := b.BuildTransfer(context.Background(), s, k, one18, Options{})
	require.NoError(t, err)

	require.Len(t, txs, 2)
	assert.Equal(t, a(99), txs[0].To)
	assert.Equal(t, a(99), txs[1].To)
	assert.True(t, approval.called)
	assert.True(t, pf.called)
}

func TestBuildTransferSkipsApprovalWhenAlreadyApproved(t *testing.T) {
	s, k := a(1), a(2)
	one18 := amount.FromUint64(1_000_000_000_000_000_000)

	pf := &fakePathFinder{result: &pathfinder.Result{
		MaxFlow: one18,
		Steps: []flowmatrix.Step{
			{From: s, To: k, TokenOwner: s, Value: v192(t, 1_000_000_000_000_000_000)},
		},
	}}
	resolver := &fakeResolver{}
	approval := &fakeApproval{approved: true}

	b := NewBuilder(Config{V2HubAddress: a(99)}, pf, resolver, nil, approval)
	txs, err := b.BuildTransfer(context.Background(), s, k, one18, Options{})
	require.NoError(t, err)

	require.Len(t, txs, 1)
}

func TestBuildTransferWithApprovalCheckDisabledAlwaysApproves(t *testing.T) {
	s, k := a(1), a(2)
	one18 := amount.FromUint64(1_000_000_000_000_000_000)

	pf := &fakePathFinder{result: &pathfinder.Result{
		MaxFlow: one18,
		Steps: []flowmatrix.Step{
			{From: s, To: k, TokenOwner: s, Value: v192(t, 1_000_000_000_000_000_000)},
		},
	}}
	resolver := &fakeResolver{}
	approval := &fakeApproval{approved: true}

	b := NewBuilder(Config{V2HubAddress: a(99)}, pf, resolver, nil, approval).WithApprovalCheck(false)
	txs, err := b.BuildTransfer(context.Background(), s, k, one18, Options{})
	require.NoError(t, err)

	require.Len(t, txs, 2)
	assert.False(t, approval.called)
}

func TestBuildTransferNoPathReturnsError(t *testing.T) {
	s, k := a(1), a(2)
	pf := &fakePathFinder{result: &pathfinder.Result{MaxFlow: amount.Zero256, Steps: nil}}
	resolver := &fakeResolver{}

	b := NewBuilder(Config{V2HubAddress: a(99)}, pf, resolver, nil, nil)
	_, err := b.BuildTransfer(context.Background(), s, k, amount.FromUint64(1000), Options{})
	require.Error(t, err)

	var noPath *cerrors.NoPath
	assert.ErrorAs(t, err, &noPath)
}

func TestBuildTransferInsufficientFlowReturnsError(t *testing.T) {
	s, k := a(1), a(2)
	pf := &fakePathFinder{result: &pathfinder.Result{
		MaxFlow: amount.FromUint64(1),
		Steps: []flowmatrix.Step{
			{From: s, To: k, TokenOwner: s, Value: v192(t, 1)},
		},
	}}
	resolver := &fakeResolver{}

	b := NewBuilder(Config{V2HubAddress: a(99)}, pf, resolver, nil, nil)
	_, err := b.BuildTransfer(context.Background(), s, k, amount.FromUint64(5_000_000_000_000), Options{})
	require.Error(t, err)
}

func TestBuildTransferWithDemurragedWrapperOrdersUnwrapBeforeSettlement(t *testing.T) {
	s, k, w, underlying := a(1), a(2), a(3), a(1)
	one18 := amount.FromUint64(1_000_000_000_000_000_000)

	pf := &fakePathFinder{result: &pathfinder.Result{
		MaxFlow: one18,
		Steps: []flowmatrix.Step{
			{From: s, To: k, TokenOwner: w, Value: v192(t, 1_000_000_000_000_000_000)},
		},
	}}
	resolver := &fakeResolver{infos: map[address.Address]tokeninfo.TokenInfo{
		w: {TokenAddress: w, UnderlyingAvatar: underlying, Kind: tokeninfo.WrapperDemurraged},
	}}
	approval := &fakeApproval{approved: true}

	b := NewBuilder(Config{V2HubAddress: a(99)}, pf, resolver, nil, approval)
	txs, err := b.BuildTransfer(context.Background(), s, k, one18, Options{})
	require.NoError(t, err)

	require.Len(t, txs, 2)
	assert.Equal(t, w, txs[0].To)
	assert.Equal(t, a(99), txs[1].To)
}

func TestBuildTransferVerifyNettingRejectsUnbalancedPath(t *testing.T) {
	s, k, stray := a(1), a(2), a(3)
	one18 := amount.FromUint64(1_000_000_000_000_000_000)

	pf := &fakePathFinder{result: &pathfinder.Result{
		MaxFlow: one18,
		Steps: []flowmatrix.Step{
			{From: s, To: stray, TokenOwner: s, Value: v192(t, 1_000_000_000_000_000_000)},
			{From: stray, To: k, TokenOwner: s, Value: v192(t, 1_000_000_000_000_000_000)},
			{From: stray, To: k, TokenOwner: s, Value: v192(t, 1_000_000_000_000_000_000)},
		},
	}}
	resolver := &fakeResolver{}

	b := NewBuilder(Config{V2HubAddress: a(99)}, pf, resolver, nil, nil)
	_, err := b.BuildTransfer(context.Background(), s, k, one18, Options{VerifyNetting: true})
	require.Error(t, err)
}

func TestSelfUnwrapFastPathSkipsPathfinding(t *testing.T) {
	avatar, fromToken, toToken := a(1), a(5), a(6)
	pf := &fakePathFinder{err: errors.New("must not be called")}
	resolver := &fakeResolver{infos: map[address.Address]tokeninfo.TokenInfo{
		fromToken: {TokenAddress: fromToken, UnderlyingAvatar: avatar, Kind: tokeninfo.WrapperDemurraged},
	}}

	b := NewBuilder(Config{V2HubAddress: a(99)}, pf, resolver, nil, nil)
	txs, err := b.BuildTransfer(context.Background(), avatar, avatar, amount.FromUint64(500), Options{
		FromTokens: []address.Address{fromToken},
		ToTokens:   []address.Address{toToken},
	})
	require.NoError(t, err)

	require.Len(t, txs, 1)
	assert.Equal(t, fromToken, txs[0].To)
	assert.False(t, pf.called)
}

func TestSelfUnwrapFastPathFallsThroughWhenTokenUnrecognized(t *testing.T) {
	avatar, fromToken, toToken, sink := a(1), a(5), a(6), a(2)
	one18 := amount.FromUint64(1_000_000_000_000_000_000)
	pf := &fakePathFinder{result: &pathfinder.Result{
		MaxFlow: one18,
		Steps: []flowmatrix.Step{
			{From: avatar, To: sink, TokenOwner: avatar, Value: v192(t, 1_000_000_000_000_000_000)},
		},
	}}
	resolver := &fakeResolver{}

	b := NewBuilder(Config{V2HubAddress: a(99)}, pf, resolver, nil, nil)
	_, err := b.BuildTransfer(context.Background(), avatar, avatar, one18, Options{
		FromTokens: []address.Address{fromToken},
		ToTokens:   []address.Address{toToken},
	})
	// This test only asserts that the fast path was bypassed in favor of a
	// normal pathfinder call when the resolver doesn't recognize fromToken.
	require.NoError(t, err)
	assert.True(t, pf.called)
}
