package tokeninfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deluXtreme/circles-go/address"
)

func TestResolveBatchEmptyIsNoop(t *testing.T) {
	c := NewClient("http://unused.invalid", nil)
	out, err := c.ResolveBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestResolveBatchDecodesAndNormalizes(t *testing.T) {
	wrapper := "0x1111111111111111111111111111111111111111"
	avatar := "0x2222222222222222222222222222222222222222"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":[
			{"token":"` + wrapper + `","token_owner":"` + avatar + `","token_type":"CrcV2_ERC20WrapperDeployed_Inflationary","timestamp":1700000000}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	wrapperAddr, err := address.ParseAddress(wrapper)
	require.NoError(t, err)

	out, err := c.ResolveBatch(context.Background(), []address.Address{wrapperAddr})
	require.NoError(t, err)
	require.Contains(t, out, wrapperAddr)

	info := out[wrapperAddr]
	assert.Equal(t, WrapperInflationary, info.Kind)
	require.NotNil(t, info.AnchorTimestamp)
	assert.Equal(t, int64(1700000000), *info.AnchorTimestamp)
}
