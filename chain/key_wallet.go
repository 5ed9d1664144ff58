package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ErrNoBackend is returned by a KeyWallet without chain access
var ErrNoBackend = errors.New("wallet has no chain backend")

// ErrUnknownAccount is returned when signing for an account the wallet does not hold
var ErrUnknownAccount = errors.New("unknown account")

// KeyWallet is a Wallet backed by a single local private key
type KeyWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	backend    Backend
}

// NewKeyWallet creates a KeyWallet from a hex private key. The backend
// may be nil for a wallet that only signs orders.
func NewKeyWallet(privateKeyHex string, backend Backend) (*KeyWallet, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewKeyWalletFromKey(privateKey, backend), nil
}

// NewKeyWalletFromKey creates a KeyWallet from an existing key
func NewKeyWalletFromKey(privateKey *ecdsa.PrivateKey, backend Backend) *KeyWallet {
	return &KeyWallet{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		backend:    backend,
	}
}

// Address returns the address of the wallet key
func (w *KeyWallet) Address() common.Address {
	return w.address
}

// RequestAccounts returns the single account of the wallet
func (w *KeyWallet) RequestAccounts(_ context.Context) ([]common.Address, error) {
	return []common.Address{w.address}, nil
}

// ChainID returns the chain ID reported by the backend
func (w *KeyWallet) ChainID(ctx context.Context) (*big.Int, error) {
	if w.backend == nil {
		return nil, ErrNoBackend
	}
	return w.backend.ChainID(ctx)
}

// SignTypedData signs EIP712 typed data
func (w *KeyWallet) SignTypedData(_ context.Context, account common.Address, typedData apitypes.TypedData) ([]byte, error) {
	if err := w.checkAccount(account); err != nil {
		return nil, err
	}
	hash, err := TypedDataHash(typedData)
	if err != nil {
		return nil, err
	}
	return w.sign(hash.Bytes())
}

// SignMessage signs a message with the Ethereum signed message prefix
func (w *KeyWallet) SignMessage(_ context.Context, account common.Address, message []byte) ([]byte, error) {
	if err := w.checkAccount(account); err != nil {
		return nil, err
	}
	return w.sign(accounts.TextHash(message))
}

// SendTransaction signs a contract call with the wallet key and broadcasts it
func (w *KeyWallet) SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error) {
	if err := w.checkAccount(from); err != nil {
		return common.Hash{}, err
	}
	if w.backend == nil {
		return common.Hash{}, ErrNoBackend
	}

	chainID, err := w.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get chain ID: %w", err)
	}

	nonce, err := w.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), w.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := w.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	return signedTx.Hash(), nil
}

func (w *KeyWallet) sign(hash []byte) ([]byte, error) {
	signature, err := crypto.Sign(hash, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	// Add recovery ID
	signature[64] += 27

	return signature, nil
}

func (w *KeyWallet) checkAccount(account common.Address) error {
	if account != w.address {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
	}
	return nil
}
