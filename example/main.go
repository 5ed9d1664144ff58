// Example usage of the Gnosis Protocol v2 order SDK: approve, quote,
// sign and submit one order, configured from the environment.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	gpv2 "github.com/kaifufi/gpv2-order-sdk-go"
	"github.com/kaifufi/gpv2-order-sdk-go/chain"
)

func main() {
	// Load .env file if it exists (optional)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(getenv("LOG_LEVEL", "info")),
	}))

	handle(logger, func() error {
		return run(context.Background(), logger)
	})
}

// handle reports a failed action the way a user sees it: only the message
func handle(logger *slog.Logger, action func() error) {
	if err := action(); err != nil {
		logger.Error("action_failed", "error", err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	ethClient, err := ethclient.DialContext(ctx, getenv("RPC_URL", "http://localhost:8545"))
	if err != nil {
		return fmt.Errorf("failed to connect to RPC: %w", err)
	}
	defer ethClient.Close()

	wallet, err := newWallet(ctx, ethClient)
	if err != nil {
		return err
	}

	environment, err := gpv2.ParseEnvironment(os.Getenv("ORDERBOOK_ENV"))
	if err != nil {
		return err
	}

	settlement := common.HexToAddress(gpv2.DefaultContractAddresses[gpv2.ChainIDMainnet].Settlement)
	contracts := chain.NewContractCaller(ethClient, wallet, settlement)

	client, err := gpv2.NewClient(gpv2.ClientConfig{
		Wallet:      wallet,
		Contracts:   contracts,
		Environment: environment,
		BaseURL:     os.Getenv("ORDERBOOK_URL"),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	account, err := client.Connect(ctx)
	if err != nil {
		return err
	}
	logger.Info("connected", "account", account.Hex())

	domain, _, err := client.Domain(ctx)
	if err != nil {
		return err
	}
	if onChain, err := contracts.DomainSeparator(ctx); err == nil && onChain != domain.Separator() {
		logger.Warn("domain_separator_mismatch", "local", domain.Separator().Hex(), "on_chain", onChain.Hex())
	}

	order, err := buildOrder(ctx, contracts)
	if err != nil {
		return err
	}

	scheme, err := chain.ParseSigningScheme(getenv("SIGNING_SCHEME", "eip712"))
	if err != nil {
		return err
	}

	var opts gpv2.PlaceOrderOptions
	if getenv("FETCH_QUOTE", "true") == "true" {
		quote, err := client.Quote(ctx, order)
		if err != nil {
			return err
		}
		order = quote.ApplyTo(order)
		opts.QuoteID = &quote.ID

		if decimals, err := contracts.Decimals(ctx, order.SellToken); err == nil {
			logger.Info("quoted_sell_amount", "amount", gpv2.FormatUnits(order.SellAmount, int(decimals)))
		}
	}

	approvalTx, err := client.EnsureAllowance(ctx, order.SellToken, order.SellAmount)
	if err != nil {
		return err
	}
	if approvalTx != nil {
		if _, err := contracts.WaitForReceipt(ctx, *approvalTx); err != nil {
			return err
		}
	}

	result, err := client.PlaceOrder(ctx, order, scheme, opts)
	if err != nil {
		return err
	}
	if result.PreSignatureTx != nil {
		if _, err := contracts.WaitForReceipt(ctx, *result.PreSignatureTx); err != nil {
			return err
		}
	}

	status, err := client.GetOrder(ctx, result.UID)
	if err != nil {
		return err
	}
	logger.Info("order_status", "uid", status.UID, "status", status.Status)

	fmt.Println(result.ExplorerURL)
	return nil
}

func newWallet(ctx context.Context, ethClient *ethclient.Client) (chain.Wallet, error) {
	if providerURL := os.Getenv("WALLET_RPC_URL"); providerURL != "" {
		wallet, err := chain.DialRPCWallet(ctx, providerURL)
		if err != nil {
			return nil, err
		}
		return wallet, nil
	}
	privateKey := os.Getenv("PRIVATE_KEY")
	if privateKey == "" {
		return nil, fmt.Errorf("either WALLET_RPC_URL or PRIVATE_KEY must be set")
	}
	wallet, err := chain.NewKeyWallet(privateKey, ethClient)
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// buildOrder reads the order form from the environment. Sell and buy
// amounts are given in token units and scaled by the token decimals.
func buildOrder(ctx context.Context, contracts *chain.ContractCaller) (*chain.Order, error) {
	data := &chain.OrderData{
		SellToken:         os.Getenv("SELL_TOKEN"),
		BuyToken:          os.Getenv("BUY_TOKEN"),
		Receiver:          os.Getenv("RECEIVER"),
		ValidTo:           os.Getenv("VALID_TO"),
		AppData:           os.Getenv("APP_DATA"),
		FeeAmount:         getenv("FEE_AMOUNT", "0"),
		Kind:              getenv("KIND", string(chain.OrderKindSell)),
		PartiallyFillable: getenv("PARTIALLY_FILLABLE", "false") == "true",
		SellTokenBalance:  os.Getenv("SELL_TOKEN_BALANCE"),
		BuyTokenBalance:   os.Getenv("BUY_TOKEN_BALANCE"),
	}

	var err error
	if data.SellAmount, err = scaleAmount(ctx, contracts, data.SellToken, getenv("SELL_AMOUNT", "0")); err != nil {
		return nil, fmt.Errorf("sell amount: %w", err)
	}
	if data.BuyAmount, err = scaleAmount(ctx, contracts, data.BuyToken, getenv("BUY_AMOUNT", "0")); err != nil {
		return nil, fmt.Errorf("buy amount: %w", err)
	}

	return chain.BuildOrder(data)
}

func scaleAmount(ctx context.Context, contracts *chain.ContractCaller, token, amount string) (string, error) {
	if !common.IsHexAddress(token) {
		return amount, nil
	}
	decimals, err := contracts.Decimals(ctx, common.HexToAddress(token))
	if err != nil {
		return "", err
	}
	units, err := gpv2.ParseUnits(amount, int(decimals))
	if err != nil {
		return "", err
	}
	return units.String(), nil
}

func getenv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		if level, err := strconv.Atoi(raw); err == nil {
			return slog.Level(level)
		}
		return slog.LevelInfo
	}
}
