package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// RPCWallet is a Wallet that delegates to an external JSON-RPC account
// provider (a node with unlocked accounts, a signer daemon or a wallet
// bridge). Keys never leave the provider.
type RPCWallet struct {
	client *rpc.Client
}

// DialRPCWallet connects to a JSON-RPC account provider
func DialRPCWallet(ctx context.Context, rawURL string) (*RPCWallet, error) {
	client, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to wallet provider: %w", err)
	}
	return NewRPCWallet(client), nil
}

// NewRPCWallet wraps an existing RPC client
func NewRPCWallet(client *rpc.Client) *RPCWallet {
	return &RPCWallet{client: client}
}

// RequestAccounts asks the provider for account access
func (w *RPCWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := w.client.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, fmt.Errorf("eth_requestAccounts: %w", err)
	}
	return accounts, nil
}

// ChainID returns the chain the provider is connected to
func (w *RPCWallet) ChainID(ctx context.Context) (*big.Int, error) {
	var chainID hexutil.Big
	if err := w.client.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		return nil, fmt.Errorf("eth_chainId: %w", err)
	}
	return chainID.ToInt(), nil
}

// SignTypedData requests an eth_signTypedData_v4 signature
func (w *RPCWallet) SignTypedData(ctx context.Context, account common.Address, typedData apitypes.TypedData) ([]byte, error) {
	payload, err := json.Marshal(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}

	var signature hexutil.Bytes
	if err := w.client.CallContext(ctx, &signature, "eth_signTypedData_v4", account, string(payload)); err != nil {
		return nil, fmt.Errorf("eth_signTypedData_v4: %w", err)
	}
	return signature, nil
}

// SignMessage requests a personal_sign signature over raw bytes
func (w *RPCWallet) SignMessage(ctx context.Context, account common.Address, message []byte) ([]byte, error) {
	var signature hexutil.Bytes
	if err := w.client.CallContext(ctx, &signature, "personal_sign", hexutil.Bytes(message), account); err != nil {
		return nil, fmt.Errorf("personal_sign: %w", err)
	}
	return signature, nil
}

// SendTransaction asks the provider to sign and broadcast a contract call
func (w *RPCWallet) SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error) {
	args := map[string]interface{}{
		"from": from,
		"to":   to,
		"data": hexutil.Bytes(data),
	}

	var txHash common.Hash
	if err := w.client.CallContext(ctx, &txHash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendTransaction: %w", err)
	}
	return txHash, nil
}

// Close closes the provider connection
func (w *RPCWallet) Close() {
	if w.client != nil {
		w.client.Close()
	}
}
