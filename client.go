package gpv2

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/kaifufi/gpv2-order-sdk-go/chain"
)

// Orderbook is the REST orderbook used by the client. *APIClient implements it.
type Orderbook interface {
	SubmitOrder(ctx context.Context, order *OrderCreation) (OrderUID, error)
	FetchQuote(ctx context.Context, quote *QuoteRequest) (*Quote, error)
	GetOrder(ctx context.Context, uid OrderUID) (*OrderStatus, error)
}

// Contracts is the on-chain surface used by the client.
// *chain.ContractCaller implements it.
type Contracts interface {
	SettlementAddress() common.Address
	VaultRelayer(ctx context.Context) (common.Address, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, owner, token, spender common.Address, amount *big.Int) (common.Hash, error)
	SetPreSignature(ctx context.Context, owner common.Address, orderUID []byte, signed bool) (common.Hash, error)
}

var (
	_ Orderbook = (*APIClient)(nil)
	_ Contracts = (*chain.ContractCaller)(nil)
)

// ClientConfig holds configuration for creating a Client
type ClientConfig struct {
	// Wallet provides accounts, the current network, signatures and
	// transactions. Required.
	Wallet chain.Wallet

	// Contracts is needed for presigning and allowance management.
	Contracts Contracts

	// Environment picks the orderbook deployment; BaseURL overrides it.
	Environment Environment
	BaseURL     string

	// Orderbook replaces the per-network API client when set.
	Orderbook Orderbook

	// HTTPClient is used by the per-network API clients.
	HTTPClient *http.Client

	// RateLimit caps orderbook requests per second for each network.
	// Zero means unthrottled.
	RateLimit rate.Limit
	RateBurst int

	Logger *slog.Logger
}

// Client builds, signs and submits orders
type Client struct {
	wallet      chain.Wallet
	contracts   Contracts
	environment Environment
	baseURL     string
	orderbook   Orderbook
	httpClient  *http.Client
	rateLimit   rate.Limit
	rateBurst   int
	logger      *slog.Logger

	mu         sync.Mutex
	apiClients map[ChainID]*APIClient
}

// NewClient creates a new orderbook SDK client
func NewClient(config ClientConfig) (*Client, error) {
	if config.Wallet == nil {
		return nil, &InvalidParamError{Message: "wallet is required"}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return &Client{
		wallet:      config.Wallet,
		contracts:   config.Contracts,
		environment: config.Environment,
		baseURL:     config.BaseURL,
		orderbook:   config.Orderbook,
		httpClient:  httpClient,
		rateLimit:   config.RateLimit,
		rateBurst:   config.RateBurst,
		logger:      logger.With("component", "gpv2-client"),
		apiClients:  make(map[ChainID]*APIClient),
	}, nil
}

// Connect requests account access and returns the active account
func (c *Client) Connect(ctx context.Context) (common.Address, error) {
	accounts, err := c.wallet.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccounts
	}
	return accounts[0], nil
}

// Network returns the chain the wallet is currently connected to
func (c *Client) Network(ctx context.Context) (ChainID, error) {
	raw, err := c.wallet.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return ChainIDFromBig(raw)
}

// Domain computes the signing domain for the wallet's current network.
// It is derived again on every call so network switches are picked up.
func (c *Client) Domain(ctx context.Context) (*chain.Domain, ChainID, error) {
	chainID, err := c.Network(ctx)
	if err != nil {
		return nil, 0, err
	}
	return chain.NewDomain(chainID.Big(), c.settlementAddress(chainID)), chainID, nil
}

// Quote fetches the orderbook's amounts and fee for an order. The order's
// own amounts only matter as the amount to quote for its kind.
func (c *Client) Quote(ctx context.Context, order *chain.Order) (*Quote, error) {
	// Fail on bad kinds before touching the wallet or network
	if _, err := chain.ParseOrderKind(string(order.Kind)); err != nil {
		return nil, err
	}

	account, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}

	req, err := NewQuoteRequest(order, account)
	if err != nil {
		return nil, err
	}

	chainID, err := c.Network(ctx)
	if err != nil {
		return nil, err
	}

	orderbook, err := c.orderbookFor(chainID)
	if err != nil {
		return nil, err
	}

	quote, err := orderbook.FetchQuote(ctx, req)
	if err != nil {
		c.logger.Error("quote_failed", "kind", order.Kind, "error", err)
		return nil, err
	}

	c.logger.Info("quote_fetched",
		"quote_id", quote.ID,
		"sell_amount", quote.SellAmount.String(),
		"buy_amount", quote.BuyAmount.String(),
		"fee_amount", quote.FeeAmount.String(),
	)
	return quote, nil
}

// PlaceOrderOptions holds optional order placement parameters
type PlaceOrderOptions struct {
	QuoteID *QuoteID
}

// PlaceOrder signs an order under the given scheme and submits it. For
// presign orders the settlement contract is told about the order once the
// orderbook has accepted it. Orderbook rejections are returned as
// *OrderbookError without further wrapping.
func (c *Client) PlaceOrder(ctx context.Context, order *chain.Order, scheme chain.SigningScheme, opts PlaceOrderOptions) (*PlaceOrderResult, error) {
	if _, err := scheme.MarshalText(); err != nil {
		return nil, err
	}
	if _, err := chain.ParseOrderKind(string(order.Kind)); err != nil {
		return nil, err
	}
	if scheme == chain.SigningSchemePreSign && c.contracts == nil {
		return nil, ErrNoContracts
	}

	account, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}

	domain, chainID, err := c.Domain(ctx)
	if err != nil {
		return nil, err
	}

	orderbook, err := c.orderbookFor(chainID)
	if err != nil {
		return nil, err
	}

	signature, err := chain.NewSigner(c.wallet, account).Sign(ctx, domain, order, scheme)
	if err != nil {
		return nil, err
	}

	uid, err := orderbook.SubmitOrder(ctx, NewOrderCreation(order, signature, account, opts.QuoteID))
	if err != nil {
		c.logger.Error("order_rejected", "scheme", scheme, "error", err)
		return nil, err
	}

	result := &PlaceOrderResult{
		UID:         uid,
		ExplorerURL: ExplorerURL(c.environment, uid),
		Scheme:      scheme,
	}

	expected := chain.ComputeOrderUID(chain.OrderDigest(domain, order), account, order.ValidTo)
	uidBytes, uidErr := uid.Bytes()
	result.UIDMatchesLocal = uidErr == nil && bytes.Equal(expected, uidBytes)
	if !result.UIDMatchesLocal {
		c.logger.Warn("order_uid_mismatch", "uid", uid, "expected", fmt.Sprintf("0x%x", expected))
	}

	c.logger.Info("order_submitted", "uid", uid, "scheme", scheme, "chain_id", int(chainID))

	if scheme == chain.SigningSchemePreSign {
		if uidErr != nil {
			return nil, uidErr
		}
		txHash, err := c.contracts.SetPreSignature(ctx, account, uidBytes, true)
		if err != nil {
			return nil, fmt.Errorf("order %s accepted but presignature failed: %w", uid, err)
		}
		result.PreSignatureTx = &txHash
		c.logger.Info("presignature_sent", "uid", uid, "tx_hash", txHash.Hex())
	}

	return result, nil
}

// EnsureAllowance makes sure the vault relayer may pull amount of token
// from the connected account. When the current allowance is not strictly
// greater than amount, an unlimited approval is submitted and its
// transaction hash returned; otherwise the result is nil.
func (c *Client) EnsureAllowance(ctx context.Context, token common.Address, amount *big.Int) (*common.Hash, error) {
	if c.contracts == nil {
		return nil, ErrNoContracts
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, &InvalidParamError{Message: "amount must be a non-negative integer"}
	}

	account, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}

	relayer, err := c.contracts.VaultRelayer(ctx)
	if err != nil {
		return nil, err
	}

	allowance, err := c.contracts.Allowance(ctx, token, account, relayer)
	if err != nil {
		return nil, err
	}

	if allowance.Cmp(amount) > 0 {
		c.logger.Debug("allowance_sufficient", "token", token.Hex(), "allowance", allowance.String())
		return nil, nil
	}

	txHash, err := c.contracts.Approve(ctx, account, token, relayer, MaxUint256())
	if err != nil {
		return nil, err
	}

	c.logger.Info("approval_sent", "token", token.Hex(), "spender", relayer.Hex(), "tx_hash", txHash.Hex())
	return &txHash, nil
}

// GetOrder fetches an order from the orderbook of the wallet's network
func (c *Client) GetOrder(ctx context.Context, uid OrderUID) (*OrderStatus, error) {
	chainID, err := c.Network(ctx)
	if err != nil {
		return nil, err
	}

	orderbook, err := c.orderbookFor(chainID)
	if err != nil {
		return nil, err
	}

	return orderbook.GetOrder(ctx, uid)
}

func (c *Client) orderbookFor(chainID ChainID) (Orderbook, error) {
	if c.orderbook != nil {
		return c.orderbook, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if apiClient, ok := c.apiClients[chainID]; ok {
		return apiClient, nil
	}

	host, err := OrderbookURL(c.environment, chainID, c.baseURL)
	if err != nil {
		return nil, err
	}

	apiClient := NewAPIClient(host, c.httpClient).WithRateLimit(c.rateLimit, c.rateBurst)
	c.apiClients[chainID] = apiClient
	c.logger.Debug("orderbook_selected", "chain_id", int(chainID), "host", host)
	return apiClient, nil
}

func (c *Client) settlementAddress(chainID ChainID) common.Address {
	if c.contracts != nil {
		return c.contracts.SettlementAddress()
	}
	return common.HexToAddress(DefaultContractAddresses[chainID].Settlement)
}

// IsOrderbookError reports whether err is an orderbook rejection and returns it
func IsOrderbookError(err error) (*OrderbookError, bool) {
	var apiErr *OrderbookError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
