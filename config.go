package gpv2

import (
	"fmt"
	"math/big"
	"strings"
)

// ChainID represents a blockchain chain ID
type ChainID int

const (
	ChainIDMainnet ChainID = 1   // Ethereum mainnet
	ChainIDRinkeby ChainID = 4   // Rinkeby testnet
	ChainIDXDai    ChainID = 100 // xDai chain
)

// SupportedChainIDs lists all supported chain IDs
var SupportedChainIDs = []ChainID{ChainIDMainnet, ChainIDRinkeby, ChainIDXDai}

// networkNames maps chain IDs to the network name used in orderbook hosts
var networkNames = map[ChainID]string{
	ChainIDMainnet: "mainnet",
	ChainIDRinkeby: "rinkeby",
	ChainIDXDai:    "xdai",
}

// ChainIDFromBig converts a chain ID reported by a wallet, failing for
// networks the orderbook does not serve
func ChainIDFromBig(chainID *big.Int) (ChainID, error) {
	if chainID == nil || !chainID.IsInt64() {
		return 0, fmt.Errorf("%w %v", ErrUnsupportedNetwork, chainID)
	}
	id := ChainID(chainID.Int64())
	if _, ok := networkNames[id]; !ok {
		return 0, fmt.Errorf("%w %d", ErrUnsupportedNetwork, id)
	}
	return id, nil
}

// Network returns the orderbook network name of the chain
func (id ChainID) Network() (string, error) {
	name, ok := networkNames[id]
	if !ok {
		return "", fmt.Errorf("%w %d", ErrUnsupportedNetwork, id)
	}
	return name, nil
}

// Big returns the chain ID as a big integer
func (id ChainID) Big() *big.Int {
	return big.NewInt(int64(id))
}

// ContractAddresses holds contract addresses for each chain
type ContractAddresses struct {
	Settlement string
}

// DefaultContractAddresses maps chain IDs to their contract addresses.
// The settlement contract is deployed deterministically on every chain.
var DefaultContractAddresses = map[ChainID]ContractAddresses{
	ChainIDMainnet: {Settlement: "0x9008D19f58AAbD9eD0D60971565AA8510560ab41"},
	ChainIDRinkeby: {Settlement: "0x9008D19f58AAbD9eD0D60971565AA8510560ab41"},
	ChainIDXDai:    {Settlement: "0x9008D19f58AAbD9eD0D60971565AA8510560ab41"},
}

// Environment selects which orderbook deployment to talk to
type Environment int

const (
	EnvironmentStaging Environment = iota
	EnvironmentProduction
	EnvironmentLocal
)

// ParseEnvironment parses an environment name
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "staging", "dev":
		return EnvironmentStaging, nil
	case "production", "prod":
		return EnvironmentProduction, nil
	case "local":
		return EnvironmentLocal, nil
	default:
		return 0, &InvalidParamError{Message: fmt.Sprintf("unknown environment %q", s)}
	}
}

func (e Environment) String() string {
	switch e {
	case EnvironmentStaging:
		return "staging"
	case EnvironmentProduction:
		return "production"
	case EnvironmentLocal:
		return "local"
	default:
		return fmt.Sprintf("Environment(%d)", int(e))
	}
}

// DefaultLocalURL is the orderbook address used by EnvironmentLocal
const DefaultLocalURL = "http://localhost:8080"

// OrderbookURL returns the orderbook base URL for an environment and chain.
// A non-empty override always wins.
func OrderbookURL(env Environment, chainID ChainID, override string) (string, error) {
	if override != "" {
		return strings.TrimRight(override, "/"), nil
	}

	network, err := chainID.Network()
	if err != nil {
		return "", err
	}

	switch env {
	case EnvironmentProduction:
		return fmt.Sprintf("https://protocol-%s.gnosis.io", network), nil
	case EnvironmentStaging:
		return fmt.Sprintf("https://protocol-%s.dev.gnosisdev.com", network), nil
	case EnvironmentLocal:
		return DefaultLocalURL, nil
	default:
		return "", &InvalidParamError{Message: fmt.Sprintf("unknown environment %d", int(env))}
	}
}

// ExplorerURL returns the order explorer link for an order UID
func ExplorerURL(env Environment, uid OrderUID) string {
	if env == EnvironmentProduction {
		return fmt.Sprintf("https://gnosis-protocol.io/orders/%s", uid)
	}
	return fmt.Sprintf("https://protocol-explorer.dev.gnosisdev.com/orders/%s", uid)
}
