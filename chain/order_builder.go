package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

// Order building errors
var (
	ErrUnsupportedKind   = errors.New("unsupported order kind")
	ErrUnsupportedScheme = errors.New("unsupported signing scheme")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidValidTo    = errors.New("invalid validTo")
	ErrInvalidAppData    = errors.New("invalid appData")
)

// Order is a Gnosis Protocol v2 order. Values returned by BuildOrder are
// treated as immutable: they are signed and submitted as a whole.
type Order struct {
	SellToken         common.Address
	BuyToken          common.Address
	Receiver          common.Address
	SellAmount        *big.Int
	BuyAmount         *big.Int
	ValidTo           uint32
	AppData           common.Hash
	FeeAmount         *big.Int
	Kind              OrderKind
	PartiallyFillable bool
	SellTokenBalance  TokenBalance
	BuyTokenBalance   TokenBalance
}

// OrderParameters is the JSON shape of an order as the orderbook expects it
type OrderParameters struct {
	SellToken         common.Address `json:"sellToken"`
	BuyToken          common.Address `json:"buyToken"`
	Receiver          common.Address `json:"receiver"`
	SellAmount        string         `json:"sellAmount"`
	BuyAmount         string         `json:"buyAmount"`
	ValidTo           uint32         `json:"validTo"`
	AppData           common.Hash    `json:"appData"`
	FeeAmount         string         `json:"feeAmount"`
	Kind              OrderKind      `json:"kind"`
	PartiallyFillable bool           `json:"partiallyFillable"`
	SellTokenBalance  TokenBalance   `json:"sellTokenBalance"`
	BuyTokenBalance   TokenBalance   `json:"buyTokenBalance"`
}

// BuildOrder validates raw input fields and builds an Order
func BuildOrder(data *OrderData) (*Order, error) {
	if data == nil {
		return nil, fmt.Errorf("order data is required")
	}

	kind, err := ParseOrderKind(data.Kind)
	if err != nil {
		return nil, err
	}

	sellToken, err := parseAddress("sellToken", data.SellToken, false)
	if err != nil {
		return nil, err
	}
	buyToken, err := parseAddress("buyToken", data.BuyToken, false)
	if err != nil {
		return nil, err
	}
	receiver, err := parseAddress("receiver", data.Receiver, true)
	if err != nil {
		return nil, err
	}

	sellAmount, err := ParseUint256(data.SellAmount)
	if err != nil {
		return nil, fmt.Errorf("sellAmount: %w", err)
	}
	buyAmount, err := ParseUint256(data.BuyAmount)
	if err != nil {
		return nil, fmt.Errorf("buyAmount: %w", err)
	}
	feeAmount, err := ParseUint256(data.FeeAmount)
	if err != nil {
		return nil, fmt.Errorf("feeAmount: %w", err)
	}

	validTo, err := strconv.ParseUint(strings.TrimSpace(data.ValidTo), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidValidTo, data.ValidTo)
	}

	appData, err := parseAppData(data.AppData)
	if err != nil {
		return nil, err
	}

	return &Order{
		SellToken:         sellToken,
		BuyToken:          buyToken,
		Receiver:          receiver,
		SellAmount:        sellAmount,
		BuyAmount:         buyAmount,
		ValidTo:           uint32(validTo),
		AppData:           appData,
		FeeAmount:         feeAmount,
		Kind:              kind,
		PartiallyFillable: data.PartiallyFillable,
		SellTokenBalance:  tokenBalanceOrDefault(data.SellTokenBalance),
		BuyTokenBalance:   tokenBalanceOrDefault(data.BuyTokenBalance),
	}, nil
}

// ParseUint256 parses a decimal string that must fit in a uint256
func ParseUint256(s string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a decimal integer", ErrInvalidAmount, s)
	}
	if value.Sign() < 0 || value.Cmp(math.MaxBig256) > 0 {
		return nil, fmt.Errorf("%w: %s out of uint256 range", ErrInvalidAmount, value.String())
	}
	return value, nil
}

// Clone returns a deep copy of the order
func (o *Order) Clone() *Order {
	clone := *o
	clone.SellAmount = new(big.Int).Set(o.SellAmount)
	clone.BuyAmount = new(big.Int).Set(o.BuyAmount)
	clone.FeeAmount = new(big.Int).Set(o.FeeAmount)
	return &clone
}

// Parameters returns the wire representation of the order
func (o *Order) Parameters() OrderParameters {
	return OrderParameters{
		SellToken:         o.SellToken,
		BuyToken:          o.BuyToken,
		Receiver:          o.Receiver,
		SellAmount:        o.SellAmount.String(),
		BuyAmount:         o.BuyAmount.String(),
		ValidTo:           o.ValidTo,
		AppData:           o.AppData,
		FeeAmount:         o.FeeAmount.String(),
		Kind:              o.Kind,
		PartiallyFillable: o.PartiallyFillable,
		SellTokenBalance:  o.SellTokenBalance,
		BuyTokenBalance:   o.BuyTokenBalance,
	}
}

// Order converts wire parameters back into a validated Order
func (p OrderParameters) Order() (*Order, error) {
	kind, err := ParseOrderKind(string(p.Kind))
	if err != nil {
		return nil, err
	}
	sellAmount, err := ParseUint256(p.SellAmount)
	if err != nil {
		return nil, fmt.Errorf("sellAmount: %w", err)
	}
	buyAmount, err := ParseUint256(p.BuyAmount)
	if err != nil {
		return nil, fmt.Errorf("buyAmount: %w", err)
	}
	feeAmount, err := ParseUint256(p.FeeAmount)
	if err != nil {
		return nil, fmt.Errorf("feeAmount: %w", err)
	}

	return &Order{
		SellToken:         p.SellToken,
		BuyToken:          p.BuyToken,
		Receiver:          p.Receiver,
		SellAmount:        sellAmount,
		BuyAmount:         buyAmount,
		ValidTo:           p.ValidTo,
		AppData:           p.AppData,
		FeeAmount:         feeAmount,
		Kind:              kind,
		PartiallyFillable: p.PartiallyFillable,
		SellTokenBalance:  p.SellTokenBalance,
		BuyTokenBalance:   p.BuyTokenBalance,
	}, nil
}

// MarshalJSON encodes the order in the orderbook wire format
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Parameters())
}

// UnmarshalJSON decodes an order from the orderbook wire format
func (o *Order) UnmarshalJSON(data []byte) error {
	var params OrderParameters
	if err := json.Unmarshal(data, &params); err != nil {
		return err
	}
	order, err := params.Order()
	if err != nil {
		return err
	}
	*o = *order
	return nil
}

func parseAddress(field, value string, allowEmpty bool) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" && allowEmpty {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %s %q", ErrInvalidAddress, field, value)
	}
	return common.HexToAddress(value), nil
}

func parseAppData(value string) (common.Hash, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Hash{}, nil
	}
	raw, err := hexutil.Decode(value)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q must be 32 bytes of 0x-prefixed hex", ErrInvalidAppData, value)
	}
	return common.BytesToHash(raw), nil
}

func tokenBalanceOrDefault(value string) TokenBalance {
	if value == "" {
		return TokenBalanceERC20
	}
	return TokenBalance(value)
}
