package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Reader is the read-only chain access the contract caller needs.
// *ethclient.Client satisfies it.
type Reader interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Backend is the full chain access a KeyWallet needs to send
// transactions. *ethclient.Client satisfies it.
type Backend interface {
	Reader
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// DefaultReceiptPollInterval is how often WaitForReceipt polls the node
const DefaultReceiptPollInterval = 2 * time.Second

// ContractCaller handles settlement and token contract interactions.
// Reads go through the chain reader, writes through the wallet.
type ContractCaller struct {
	reader              Reader
	wallet              Wallet
	settlementAddr      common.Address
	settlementABI       abi.ABI
	erc20ABI            abi.ABI
	receiptPollInterval time.Duration
}

// NewContractCaller creates a new ContractCaller instance
func NewContractCaller(reader Reader, wallet Wallet, settlementAddr common.Address) *ContractCaller {
	return &ContractCaller{
		reader:              reader,
		wallet:              wallet,
		settlementAddr:      settlementAddr,
		settlementABI:       GetSettlementABI(),
		erc20ABI:            GetERC20ABI(),
		receiptPollInterval: DefaultReceiptPollInterval,
	}
}

// SettlementAddress returns the settlement contract address
func (cc *ContractCaller) SettlementAddress() common.Address {
	return cc.settlementAddr
}

// VaultRelayer returns the address allowed to pull sell tokens during settlement
func (cc *ContractCaller) VaultRelayer(ctx context.Context) (common.Address, error) {
	var relayer common.Address
	if err := cc.call(ctx, cc.settlementABI, cc.settlementAddr, &relayer, "vaultRelayer"); err != nil {
		return common.Address{}, fmt.Errorf("failed to get vault relayer: %w", err)
	}
	return relayer, nil
}

// DomainSeparator returns the EIP712 domain separator stored by the settlement contract
func (cc *ContractCaller) DomainSeparator(ctx context.Context) (common.Hash, error) {
	var separator [32]byte
	if err := cc.call(ctx, cc.settlementABI, cc.settlementAddr, &separator, "domainSeparator"); err != nil {
		return common.Hash{}, fmt.Errorf("failed to get domain separator: %w", err)
	}
	return common.Hash(separator), nil
}

// Allowance returns the ERC20 allowance for owner to spender
func (cc *ContractCaller) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	var allowance *big.Int
	if err := cc.call(ctx, cc.erc20ABI, token, &allowance, "allowance", owner, spender); err != nil {
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}
	return allowance, nil
}

// Decimals returns the number of decimals of an ERC20 token
func (cc *ContractCaller) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	var decimals uint8
	if err := cc.call(ctx, cc.erc20ABI, token, &decimals, "decimals"); err != nil {
		return 0, fmt.Errorf("failed to get decimals: %w", err)
	}
	return decimals, nil
}

// Approve submits an ERC20 approve(spender, amount) transaction from owner
func (cc *ContractCaller) Approve(ctx context.Context, owner, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	data, err := cc.erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack approve: %w", err)
	}

	txHash, err := cc.wallet.SendTransaction(ctx, owner, token, data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send approve: %w", err)
	}
	return txHash, nil
}

// SetPreSignature marks an order UID as signed (or revokes it) on the
// settlement contract
func (cc *ContractCaller) SetPreSignature(ctx context.Context, owner common.Address, orderUID []byte, signed bool) (common.Hash, error) {
	if len(orderUID) != OrderUIDLength {
		return common.Hash{}, fmt.Errorf("invalid order UID length %d", len(orderUID))
	}

	data, err := cc.settlementABI.Pack("setPreSignature", orderUID, signed)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack setPreSignature: %w", err)
	}

	txHash, err := cc.wallet.SendTransaction(ctx, owner, cc.settlementAddr, data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send setPreSignature: %w", err)
	}
	return txHash, nil
}

// WaitForReceipt polls for a transaction receipt until it is mined or
// ctx is done, and fails if the transaction reverted
func (cc *ContractCaller) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(cc.receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := cc.reader.TransactionReceipt(ctx, txHash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("transaction reverted: tx hash %s", txHash.Hex())
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for transaction receipt %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (cc *ContractCaller) call(ctx context.Context, contractABI abi.ABI, to common.Address, out interface{}, method string, args ...interface{}) error {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return err
	}

	result, err := cc.reader.CallContract(ctx, ethereum.CallMsg{
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return err
	}

	return contractABI.UnpackIntoInterface(out, method, result)
}
