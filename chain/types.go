package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// OrderKind represents which side of an order has a fixed amount
type OrderKind string

const (
	OrderKindSell OrderKind = "sell"
	OrderKindBuy  OrderKind = "buy"
)

// ParseOrderKind parses a kind string as entered by the user
func ParseOrderKind(s string) (OrderKind, error) {
	switch kind := OrderKind(s); kind {
	case OrderKindSell, OrderKindBuy:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

// TokenBalance is where sell tokens come from and buy tokens go to.
// The protocol knows the constants below, but the value is hashed as a
// plain string so anything else is passed through untouched.
type TokenBalance string

const (
	TokenBalanceERC20    TokenBalance = "erc20"
	TokenBalanceExternal TokenBalance = "external"
	TokenBalanceInternal TokenBalance = "internal"
)

// SigningScheme selects how an order is authorized
type SigningScheme int

const (
	SigningSchemeEIP712 SigningScheme = iota
	SigningSchemeEthSign
	SigningSchemePreSign
)

var signingSchemeNames = map[SigningScheme]string{
	SigningSchemeEIP712:  "eip712",
	SigningSchemeEthSign: "ethsign",
	SigningSchemePreSign: "presign",
}

// ParseSigningScheme parses the orderbook name of a signing scheme
func ParseSigningScheme(s string) (SigningScheme, error) {
	for scheme, name := range signingSchemeNames {
		if name == s {
			return scheme, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedScheme, s)
}

func (s SigningScheme) String() string {
	if name, ok := signingSchemeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SigningScheme(%d)", int(s))
}

// MarshalText encodes the scheme using its orderbook name
func (s SigningScheme) MarshalText() ([]byte, error) {
	name, ok := signingSchemeNames[s]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedScheme, int(s))
	}
	return []byte(name), nil
}

// UnmarshalText decodes an orderbook scheme name
func (s *SigningScheme) UnmarshalText(text []byte) error {
	scheme, err := ParseSigningScheme(string(text))
	if err != nil {
		return err
	}
	*s = scheme
	return nil
}

// OrderData holds raw order fields as they are read from user input
type OrderData struct {
	SellToken         string
	BuyToken          string
	Receiver          string
	SellAmount        string
	BuyAmount         string
	ValidTo           string
	AppData           string
	FeeAmount         string
	Kind              string
	PartiallyFillable bool
	SellTokenBalance  string
	BuyTokenBalance   string
}

// ERC20 ABI JSON for allowance and approve functions
const erc20ABIJSON = `[
	{
		"constant": true,
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"type": "function"
	}
]`

// Settlement ABI JSON for the relayer lookup and presignatures
const settlementABIJSON = `[
	{
		"inputs": [],
		"name": "vaultRelayer",
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "orderUid", "type": "bytes"},
			{"name": "signed", "type": "bool"}
		],
		"name": "setPreSignature",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "domainSeparator",
		"outputs": [{"name": "", "type": "bytes32"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// GetERC20ABI returns the parsed ERC20 ABI
func GetERC20ABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("failed to parse ERC20 ABI: " + err.Error())
	}
	return parsed
}

// GetSettlementABI returns the parsed settlement contract ABI
func GetSettlementABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(settlementABIJSON))
	if err != nil {
		panic("failed to parse settlement ABI: " + err.Error())
	}
	return parsed
}
