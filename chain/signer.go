package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SignatureLength is the length of an ECDSA r ++ s ++ v signature
const SignatureLength = crypto.SignatureLength

// Wallet is the capability set of an account provider: account access,
// network lookup, structured and plain message signing, and sending
// transactions.
type Wallet interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SignTypedData(ctx context.Context, account common.Address, typedData apitypes.TypedData) ([]byte, error)
	SignMessage(ctx context.Context, account common.Address, message []byte) ([]byte, error)
	SendTransaction(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error)
}

// Signature is a signed order authorization in its orderbook encoding
type Signature struct {
	Scheme SigningScheme
	Data   string
}

type signFunc func(ctx context.Context, wallet Wallet, account common.Address, domain *Domain, order *Order) (string, error)

var signFuncs = map[SigningScheme]signFunc{
	SigningSchemeEIP712:  signEIP712,
	SigningSchemeEthSign: signEthSign,
	SigningSchemePreSign: signPreSign,
}

// Signer signs orders on behalf of one wallet account
type Signer struct {
	wallet  Wallet
	account common.Address
}

// NewSigner creates a new Signer for the given account
func NewSigner(wallet Wallet, account common.Address) *Signer {
	return &Signer{
		wallet:  wallet,
		account: account,
	}
}

// Account returns the signing account
func (s *Signer) Account() common.Address {
	return s.account
}

// Sign produces a signature for the order under the requested scheme
func (s *Signer) Sign(ctx context.Context, domain *Domain, order *Order, scheme SigningScheme) (*Signature, error) {
	sign, ok := signFuncs[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}

	data, err := sign(ctx, s.wallet, s.account, domain, order)
	if err != nil {
		return nil, fmt.Errorf("failed to sign order with %s: %w", scheme, err)
	}

	return &Signature{Scheme: scheme, Data: data}, nil
}

func signEIP712(ctx context.Context, wallet Wallet, account common.Address, domain *Domain, order *Order) (string, error) {
	signature, err := wallet.SignTypedData(ctx, account, TypedData(domain, order))
	if err != nil {
		return "", err
	}
	return encodeSignature(signature)
}

func signEthSign(ctx context.Context, wallet Wallet, account common.Address, domain *Domain, order *Order) (string, error) {
	digest := OrderDigest(domain, order)
	signature, err := wallet.SignMessage(ctx, account, digest.Bytes())
	if err != nil {
		return "", err
	}
	return encodeSignature(signature)
}

func signPreSign(_ context.Context, _ Wallet, account common.Address, _ *Domain, _ *Order) (string, error) {
	return strings.ToLower(account.Hex()), nil
}

func encodeSignature(signature []byte) (string, error) {
	if len(signature) != SignatureLength {
		return "", fmt.Errorf("unexpected signature length %d", len(signature))
	}
	return hexutil.Encode(signature), nil
}

// RecoverSigner recovers the account that produced an eip712 or ethsign
// signature over the order digest
func RecoverSigner(digest common.Hash, signature *Signature) (common.Address, error) {
	var hash []byte
	switch signature.Scheme {
	case SigningSchemeEIP712:
		hash = digest.Bytes()
	case SigningSchemeEthSign:
		hash = accounts.TextHash(digest.Bytes())
	default:
		return common.Address{}, fmt.Errorf("%w: cannot recover %s signatures", ErrUnsupportedScheme, signature.Scheme)
	}

	sig, err := hexutil.Decode(signature.Data)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("unexpected signature length %d", len(sig))
	}

	// Wallets return v as 27/28
	sig = append([]byte(nil), sig...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	publicKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*publicKey), nil
}
