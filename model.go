package gpv2

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/kaifufi/gpv2-order-sdk-go/chain"
)

// OrderUID is the orderbook identifier of an order, 0x-prefixed hex of
// digest ++ owner ++ validTo
type OrderUID string

// Bytes decodes the UID, checking its length
func (uid OrderUID) Bytes() ([]byte, error) {
	raw, err := hexutil.Decode(string(uid))
	if err != nil {
		return nil, fmt.Errorf("invalid order UID %q: %w", uid, err)
	}
	if len(raw) != chain.OrderUIDLength {
		return nil, fmt.Errorf("invalid order UID %q: expected %d bytes, got %d", uid, chain.OrderUIDLength, len(raw))
	}
	return raw, nil
}

// QuoteID identifies a quote. The orderbook sends it as a number; it is
// kept opaque here.
type QuoteID string

// MarshalJSON writes numeric IDs as JSON numbers and anything else as a string
func (id QuoteID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts both numeric and string IDs
func (id *QuoteID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = QuoteID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid quote id %s", string(data))
	}
	*id = QuoteID(n.String())
	return nil
}

// OrderCreation is the body of an order submission
type OrderCreation struct {
	chain.OrderParameters
	Signature     string         `json:"signature"`
	SigningScheme string         `json:"signingScheme"`
	QuoteID       *QuoteID       `json:"quoteId,omitempty"`
	From          common.Address `json:"from"`
}

// NewOrderCreation assembles a submission body from a signed order
func NewOrderCreation(order *chain.Order, signature *chain.Signature, from common.Address, quoteID *QuoteID) *OrderCreation {
	return &OrderCreation{
		OrderParameters: order.Parameters(),
		Signature:       signature.Data,
		SigningScheme:   signature.Scheme.String(),
		QuoteID:         quoteID,
		From:            from,
	}
}

// QuoteRequest is the body of a quote request: the order without its
// amounts plus exactly one amount for the kind of order
type QuoteRequest struct {
	SellToken           common.Address     `json:"sellToken"`
	BuyToken            common.Address     `json:"buyToken"`
	Receiver            common.Address     `json:"receiver"`
	ValidTo             uint32             `json:"validTo"`
	AppData             common.Hash        `json:"appData"`
	Kind                chain.OrderKind    `json:"kind"`
	PartiallyFillable   bool               `json:"partiallyFillable"`
	SellTokenBalance    chain.TokenBalance `json:"sellTokenBalance"`
	BuyTokenBalance     chain.TokenBalance `json:"buyTokenBalance"`
	SellAmountBeforeFee string             `json:"sellAmountBeforeFee,omitempty"`
	BuyAmountAfterFee   string             `json:"buyAmountAfterFee,omitempty"`
	From                common.Address     `json:"from"`
}

// NewQuoteRequest derives a quote request from an order. Sell orders quote
// sellAmount + feeAmount before fees, buy orders quote buyAmount.
func NewQuoteRequest(order *chain.Order, from common.Address) (*QuoteRequest, error) {
	req := &QuoteRequest{
		SellToken:         order.SellToken,
		BuyToken:          order.BuyToken,
		Receiver:          order.Receiver,
		ValidTo:           order.ValidTo,
		AppData:           order.AppData,
		Kind:              order.Kind,
		PartiallyFillable: order.PartiallyFillable,
		SellTokenBalance:  order.SellTokenBalance,
		BuyTokenBalance:   order.BuyTokenBalance,
		From:              from,
	}

	switch order.Kind {
	case chain.OrderKindSell:
		req.SellAmountBeforeFee = new(big.Int).Add(order.SellAmount, order.FeeAmount).String()
	case chain.OrderKindBuy:
		req.BuyAmountAfterFee = order.BuyAmount.String()
	default:
		return nil, fmt.Errorf("%w: %q", chain.ErrUnsupportedKind, order.Kind)
	}

	return req, nil
}

func (r *QuoteRequest) validate() error {
	switch r.Kind {
	case chain.OrderKindSell:
		if r.SellAmountBeforeFee == "" || r.BuyAmountAfterFee != "" {
			return &InvalidParamError{Message: "sell quotes require only sellAmountBeforeFee"}
		}
	case chain.OrderKindBuy:
		if r.BuyAmountAfterFee == "" || r.SellAmountBeforeFee != "" {
			return &InvalidParamError{Message: "buy quotes require only buyAmountAfterFee"}
		}
	default:
		return fmt.Errorf("%w: %q", chain.ErrUnsupportedKind, r.Kind)
	}
	return nil
}

// Quote is the orderbook price estimate for an order
type Quote struct {
	SellAmount *big.Int
	BuyAmount  *big.Int
	FeeAmount  *big.Int
	ID         QuoteID
}

// ApplyTo returns a copy of the order carrying the quoted amounts
func (q *Quote) ApplyTo(order *chain.Order) *chain.Order {
	quoted := order.Clone()
	quoted.SellAmount = new(big.Int).Set(q.SellAmount)
	quoted.BuyAmount = new(big.Int).Set(q.BuyAmount)
	quoted.FeeAmount = new(big.Int).Set(q.FeeAmount)
	return quoted
}

type quoteResponse struct {
	Quote struct {
		SellAmount string `json:"sellAmount"`
		BuyAmount  string `json:"buyAmount"`
		FeeAmount  string `json:"feeAmount"`
	} `json:"quote"`
	ID QuoteID `json:"id"`
}

func (r *quoteResponse) toQuote() (*Quote, error) {
	sellAmount, err := chain.ParseUint256(r.Quote.SellAmount)
	if err != nil {
		return nil, fmt.Errorf("quote sellAmount: %w", err)
	}
	buyAmount, err := chain.ParseUint256(r.Quote.BuyAmount)
	if err != nil {
		return nil, fmt.Errorf("quote buyAmount: %w", err)
	}
	feeAmount, err := chain.ParseUint256(r.Quote.FeeAmount)
	if err != nil {
		return nil, fmt.Errorf("quote feeAmount: %w", err)
	}
	return &Quote{
		SellAmount: sellAmount,
		BuyAmount:  buyAmount,
		FeeAmount:  feeAmount,
		ID:         r.ID,
	}, nil
}

// OrderStatus is an order as stored by the orderbook
type OrderStatus struct {
	chain.OrderParameters
	UID                OrderUID       `json:"uid"`
	Owner              common.Address `json:"owner"`
	CreationDate       string         `json:"creationDate"`
	Status             string         `json:"status"`
	SigningScheme      string         `json:"signingScheme"`
	Signature          string         `json:"signature"`
	ExecutedSellAmount string         `json:"executedSellAmount"`
	ExecutedBuyAmount  string         `json:"executedBuyAmount"`
	Invalidated        bool           `json:"invalidated"`
}

// PlaceOrderResult is the outcome of a successful order placement
type PlaceOrderResult struct {
	UID             OrderUID
	ExplorerURL     string
	Scheme          chain.SigningScheme
	PreSignatureTx  *common.Hash
	UIDMatchesLocal bool
}
