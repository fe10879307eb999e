package balance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deluXtreme/circles-go/address"
)

func addr(b byte) address.Address {
	var a address.Address
	a[len(a)-1] = b
	return a
}

func TestTotalBalanceSelectsV2Method(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := struct {
			Method string `json:"method"`
		}{}
		_ = readJSON(r, &body)
		gotMethod = body.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"1000"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, true)
	v, err := c.TotalBalance(context.Background(), addr(1))
	require.NoError(t, err)
	assert.Equal(t, "1000", v.String())
	assert.Equal(t, "circlesV2_getTotalBalance", gotMethod)
}

func TestTokenBalancesNormalizesDecimalStrings(t *testing.T) {
	tokenID := addr(7)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":[
			{"token_id":"` + tokenID.String() + `","demurraged_atto":"100","static_atto":"120"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, false)
	entries, err := c.TokenBalances(context.Background(), addr(1))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, tokenID, entries[0].TokenID)
	assert.Equal(t, "100", entries[0].DemurragedAtto.String())
	require.NotNil(t, entries[0].StaticAtto)
	assert.Equal(t, "120", entries[0].StaticAtto.String())
}

func TestStaticBalanceReturnsZeroWhenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, false)
	v, err := c.StaticBalance(context.Background(), addr(1), addr(2))
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
