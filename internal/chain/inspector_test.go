package chain

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contractAddress = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenAddress    = common.HexToAddress("0x326C977E6efc84E512bB9C30f76E30c160eD06FB")
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

// rpcResult answers one request.
type rpcResult func(req rpcRequest) any

// newRPCServer serves both single and batched JSON-RPC requests.
func newRPCServer(t *testing.T, result rpcResult) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")

		if strings.HasPrefix(strings.TrimSpace(string(body)), "[") {
			var batch []rpcRequest
			if err := json.Unmarshal(body, &batch); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			responses := make([]rpcResponse, 0, len(batch))
			for _, req := range batch {
				responses = append(responses, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result(req)})
			}
			_ = json.NewEncoder(w).Encode(responses)
			return
		}

		var req rpcRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result(req)})
	}))
	t.Cleanup(server.Close)

	return server
}

// firstAddress is the address param of eth_getCode and eth_getBalance.
func firstAddress(req rpcRequest) common.Address {
	var addr common.Address
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params[0], &addr)
	}
	return addr
}

func chainState(tokenCode, callResult string) rpcResult {
	return func(req rpcRequest) any {
		switch req.Method {
		case "eth_getCode":
			if firstAddress(req) == tokenAddress {
				return tokenCode
			}
			return "0x6080604052"
		case "eth_getBalance":
			return "0x64"
		case "eth_call":
			return callResult
		}
		return nil
	}
}

func TestInspectorInspect(t *testing.T) {
	server := newRPCServer(t, chainState("0x6080", hexutil.Encode(common.LeftPadBytes(big.NewInt(5).Bytes(), 32))))

	inspector, err := NewInspector(server.URL)
	require.NoError(t, err)
	defer inspector.Close()

	state, err := inspector.Inspect(context.Background(), contractAddress, tokenAddress)
	require.NoError(t, err)

	assert.Equal(t, contractAddress, state.Address)
	assert.Equal(t, 5, state.CodeSize)
	assert.True(t, state.Deployed())
	assert.Equal(t, int64(100), state.Balance.Int64())
	require.NotNil(t, state.TokenBalance)
	assert.Equal(t, int64(5), state.TokenBalance.Int64())
}

func TestInspectorInspectWithoutTokenContract(t *testing.T) {
	var calls atomic.Int32
	server := newRPCServer(t, func(req rpcRequest) any {
		if req.Method == "eth_call" {
			calls.Add(1)
		}
		return chainState("0x", "0x")(req)
	})

	inspector, err := NewInspector(server.URL)
	require.NoError(t, err)
	defer inspector.Close()

	state, err := inspector.Inspect(context.Background(), contractAddress, tokenAddress)
	require.NoError(t, err)
	assert.True(t, state.Deployed())
	assert.Nil(t, state.TokenBalance)
	assert.Zero(t, calls.Load())
}

func TestInspectorInspectEmptyBalanceOfResult(t *testing.T) {
	server := newRPCServer(t, chainState("0x6080", "0x"))

	inspector, err := NewInspector(server.URL)
	require.NoError(t, err)
	defer inspector.Close()

	state, err := inspector.Inspect(context.Background(), contractAddress, tokenAddress)
	require.NoError(t, err)
	assert.True(t, state.Deployed())
	assert.Equal(t, int64(100), state.Balance.Int64())
	assert.Nil(t, state.TokenBalance)
}

func TestInspectorInspectNoCode(t *testing.T) {
	server := newRPCServer(t, func(req rpcRequest) any {
		switch req.Method {
		case "eth_getCode":
			return "0x"
		case "eth_getBalance":
			return "0x0"
		}
		return nil
	})

	inspector, err := NewInspector(server.URL)
	require.NoError(t, err)
	defer inspector.Close()

	state, err := inspector.Inspect(context.Background(), contractAddress, common.Address{})
	require.NoError(t, err)
	assert.False(t, state.Deployed())
}
