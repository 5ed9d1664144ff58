package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendTxArgs struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// ethService answers the eth_ methods of a wallet provider backed by a local key
type ethService struct {
	wallet  *KeyWallet
	chainID *big.Int
	sent    []sendTxArgs
}

func (s *ethService) RequestAccounts() []common.Address {
	return []common.Address{s.wallet.Address()}
}

func (s *ethService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(s.chainID)
}

func (s *ethService) SignTypedData_v4(ctx context.Context, account common.Address, payload string) (hexutil.Bytes, error) {
	var typedData apitypes.TypedData
	if err := json.Unmarshal([]byte(payload), &typedData); err != nil {
		return nil, err
	}
	return s.wallet.SignTypedData(ctx, account, typedData)
}

func (s *ethService) SendTransaction(args sendTxArgs) common.Hash {
	s.sent = append(s.sent, args)
	return common.HexToHash("0xfeed")
}

type personalService struct {
	wallet *KeyWallet
}

func (s *personalService) Sign(ctx context.Context, message hexutil.Bytes, account common.Address) (hexutil.Bytes, error) {
	return s.wallet.SignMessage(ctx, account, message)
}

func newTestRPCWallet(t *testing.T) (*RPCWallet, *ethService) {
	t.Helper()

	eth := &ethService{wallet: newTestKeyWallet(t), chainID: big.NewInt(100)}

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", eth))
	require.NoError(t, server.RegisterName("personal", &personalService{wallet: eth.wallet}))
	t.Cleanup(server.Stop)

	wallet := NewRPCWallet(rpc.DialInProc(server))
	t.Cleanup(wallet.Close)

	return wallet, eth
}

func TestRPCWalletAccountsAndChain(t *testing.T) {
	wallet, eth := newTestRPCWallet(t)
	ctx := context.Background()

	accounts, err := wallet.RequestAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{eth.wallet.Address()}, accounts)

	chainID, err := wallet.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), chainID.Int64())
}

func TestRPCWalletSignsOrders(t *testing.T) {
	wallet, eth := newTestRPCWallet(t)
	signer := NewSigner(wallet, eth.wallet.Address())
	domain := NewDomain(big.NewInt(100), testSettlement)
	order := testOrder()

	for _, scheme := range []SigningScheme{SigningSchemeEIP712, SigningSchemeEthSign} {
		t.Run(scheme.String(), func(t *testing.T) {
			signature, err := signer.Sign(context.Background(), domain, order, scheme)
			require.NoError(t, err)

			recovered, err := RecoverSigner(OrderDigest(domain, order), signature)
			require.NoError(t, err)
			assert.Equal(t, eth.wallet.Address(), recovered)
		})
	}
}

func TestRPCWalletSendTransaction(t *testing.T) {
	wallet, eth := newTestRPCWallet(t)

	txHash, err := wallet.SendTransaction(context.Background(), eth.wallet.Address(), testSettlement, []byte{0xde, 0xad})
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xfeed"), txHash)

	require.Len(t, eth.sent, 1)
	assert.Equal(t, eth.wallet.Address(), eth.sent[0].From)
	assert.Equal(t, testSettlement, eth.sent[0].To)
	assert.Equal(t, hexutil.Bytes{0xde, 0xad}, eth.sent[0].Data)
}

func TestRPCWalletProviderErrors(t *testing.T) {
	wallet, _ := newTestRPCWallet(t)
	stranger := common.HexToAddress("0x00000000000000000000000000000000000000ff")

	_, err := wallet.SignMessage(context.Background(), stranger, []byte("hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "personal_sign")
}
