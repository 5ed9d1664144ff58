package chain

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712 Domain constants of the settlement contract
const (
	EIP712DomainName    = "Gnosis Protocol"
	EIP712DomainVersion = "v2"
)

// OrderUIDLength is the byte length of an order UID: digest, owner and validTo
const OrderUIDLength = common.HashLength + common.AddressLength + 4

// Pre-computed type hashes using keccak256
var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))

	OrderTypeHash = crypto.Keccak256Hash([]byte(
		"Order(address sellToken,address buyToken,address receiver,uint256 sellAmount,uint256 buyAmount,uint32 validTo,bytes32 appData,uint256 feeAmount,string kind,bool partiallyFillable,string sellTokenBalance,string buyTokenBalance)",
	))
)

// OrderTypeFields is the EIP712 type descriptor of an order, in field order
var OrderTypeFields = []apitypes.Type{
	{Name: "sellToken", Type: "address"},
	{Name: "buyToken", Type: "address"},
	{Name: "receiver", Type: "address"},
	{Name: "sellAmount", Type: "uint256"},
	{Name: "buyAmount", Type: "uint256"},
	{Name: "validTo", Type: "uint32"},
	{Name: "appData", Type: "bytes32"},
	{Name: "feeAmount", Type: "uint256"},
	{Name: "kind", Type: "string"},
	{Name: "partiallyFillable", Type: "bool"},
	{Name: "sellTokenBalance", Type: "string"},
	{Name: "buyTokenBalance", Type: "string"},
}

var domainTypeFields = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// Domain represents the EIP712 domain separator data
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// NewDomain creates the settlement contract domain for a chain
func NewDomain(chainID *big.Int, settlement common.Address) *Domain {
	return &Domain{
		Name:              EIP712DomainName,
		Version:           EIP712DomainVersion,
		ChainID:           new(big.Int).Set(chainID),
		VerifyingContract: settlement,
	}
}

// Separator computes the EIP712 domain separator hash
func (d *Domain) Separator() common.Hash {
	nameHash := crypto.Keccak256Hash([]byte(d.Name))
	versionHash := crypto.Keccak256Hash([]byte(d.Version))

	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	addressType, _ := abi.NewType("address", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: bytes32Type}, // nameHash
		{Type: bytes32Type}, // versionHash
		{Type: uint256Type}, // chainId
		{Type: addressType}, // verifyingContract
	}

	encoded, err := arguments.Pack(
		EIP712DomainTypeHash,
		nameHash,
		versionHash,
		d.ChainID,
		d.VerifyingContract,
	)
	if err != nil {
		panic("failed to encode domain separator: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

func (d *Domain) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(d.ChainID)),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

// StructHash computes the EIP712 struct hash of the order
func (o *Order) StructHash() common.Hash {
	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	uint32Type, _ := abi.NewType("uint32", "", nil)
	boolType, _ := abi.NewType("bool", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: addressType}, // sellToken
		{Type: addressType}, // buyToken
		{Type: addressType}, // receiver
		{Type: uint256Type}, // sellAmount
		{Type: uint256Type}, // buyAmount
		{Type: uint32Type},  // validTo
		{Type: bytes32Type}, // appData
		{Type: uint256Type}, // feeAmount
		{Type: bytes32Type}, // kind
		{Type: boolType},    // partiallyFillable
		{Type: bytes32Type}, // sellTokenBalance
		{Type: bytes32Type}, // buyTokenBalance
	}

	// Dynamic strings are encoded as their keccak256 hash
	encoded, err := arguments.Pack(
		OrderTypeHash,
		o.SellToken,
		o.BuyToken,
		o.Receiver,
		o.SellAmount,
		o.BuyAmount,
		o.ValidTo,
		o.AppData,
		o.FeeAmount,
		crypto.Keccak256Hash([]byte(o.Kind)),
		o.PartiallyFillable,
		crypto.Keccak256Hash([]byte(o.SellTokenBalance)),
		crypto.Keccak256Hash([]byte(o.BuyTokenBalance)),
	)
	if err != nil {
		panic("failed to encode order struct: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

// OrderDigest creates the final EIP712 hash to be signed:
// keccak256("\x19\x01" ++ domainSeparator ++ structHash)
func OrderDigest(domain *Domain, order *Order) common.Hash {
	domainSeparator := domain.Separator()
	structHash := order.StructHash()

	data := make([]byte, 0, 2+32+32)
	data = append(data, 0x19, 0x01)
	data = append(data, domainSeparator.Bytes()...)
	data = append(data, structHash.Bytes()...)

	return crypto.Keccak256Hash(data)
}

// TypedData builds the EIP712 typed data payload handed to wallets
func TypedData(domain *Domain, order *Order) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainTypeFields,
			"Order":        OrderTypeFields,
		},
		PrimaryType: "Order",
		Domain:      domain.typedDataDomain(),
		Message: apitypes.TypedDataMessage{
			"sellToken":         order.SellToken.Hex(),
			"buyToken":          order.BuyToken.Hex(),
			"receiver":          order.Receiver.Hex(),
			"sellAmount":        order.SellAmount.String(),
			"buyAmount":         order.BuyAmount.String(),
			"validTo":           new(big.Int).SetUint64(uint64(order.ValidTo)).String(),
			"appData":           order.AppData.Hex(),
			"feeAmount":         order.FeeAmount.String(),
			"kind":              string(order.Kind),
			"partiallyFillable": order.PartiallyFillable,
			"sellTokenBalance":  string(order.SellTokenBalance),
			"buyTokenBalance":   string(order.BuyTokenBalance),
		},
	}
}

// TypedDataHash hashes arbitrary EIP712 typed data the way a wallet does
func TypedDataHash(typedData apitypes.TypedData) (common.Hash, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}

	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, messageHash...)
	return crypto.Keccak256Hash(rawData), nil
}

// ComputeOrderUID packs digest ++ owner ++ validTo the way the settlement
// contract identifies orders
func ComputeOrderUID(digest common.Hash, owner common.Address, validTo uint32) []byte {
	uid := make([]byte, 0, OrderUIDLength)
	uid = append(uid, digest.Bytes()...)
	uid = append(uid, owner.Bytes()...)
	uid = binary.BigEndian.AppendUint32(uid, validTo)
	return uid
}
