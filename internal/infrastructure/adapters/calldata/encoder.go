// Package calldata encodes the fixed set of contract calls the transfer flow
// makes: ERC-20 approve/balanceOf/decimals and the two TokenMessenger burns.
// It is a closed table, not a general ABI codec.
package calldata

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
)

const wordSize = 32

// Function identifies one of the registered contract functions
type Function int

const (
	FunctionApprove Function = iota + 1
	FunctionBalanceOf
	FunctionDecimals
	FunctionDepositForBurnWithCaller
	FunctionDepositForBurnWithHook
)

type functionSpec struct {
	name      string
	signature string
	selector  [4]byte
}

var functions = map[Function]*functionSpec{
	FunctionApprove:                  {name: "approve", signature: "approve(address,uint256)"},
	FunctionBalanceOf:                {name: "balanceOf", signature: "balanceOf(address)"},
	FunctionDecimals:                 {name: "decimals", signature: "decimals()"},
	FunctionDepositForBurnWithCaller: {name: "depositForBurnWithCaller", signature: "depositForBurnWithCaller(uint256,uint32,bytes32,address,bytes32)"},
	FunctionDepositForBurnWithHook:   {name: "depositForBurnWithHook", signature: "depositForBurnWithHook(uint256,uint32,bytes32,address,bytes)"},
}

func init() {
	for _, fn := range functions {
		copy(fn.selector[:], crypto.Keccak256([]byte(fn.signature))[:4])
	}
}

var errMissingAmount = errors.New("amount is required")

// String returns the contract function name
func (f Function) String() string {
	if fn, ok := functions[f]; ok {
		return fn.name
	}
	return fmt.Sprintf("Function(%d)", int(f))
}

// Signature returns the canonical signature used to derive the selector
func (f Function) Signature() (string, error) {
	fn, ok := functions[f]
	if !ok {
		return "", domainerrors.UnknownFunctionError(f.String())
	}
	return fn.signature, nil
}

// Selector returns the 4-byte function selector
func (f Function) Selector() ([4]byte, error) {
	fn, ok := functions[f]
	if !ok {
		return [4]byte{}, domainerrors.UnknownFunctionError(f.String())
	}
	return fn.selector, nil
}

// ParseFunction maps a function name to its enum value
func ParseFunction(name string) (Function, error) {
	for f, fn := range functions {
		if strings.EqualFold(fn.name, name) {
			return f, nil
		}
	}
	return 0, domainerrors.UnknownFunctionError(name)
}

// Call is a typed contract call. The set of implementations is closed.
type Call interface {
	Function() Function
	args() ([]byte, error)
}

// Approve is ERC-20 approve(spender, amount)
type Approve struct {
	Spender common.Address
	Amount  *big.Int
}

// BalanceOf is ERC-20 balanceOf(account)
type BalanceOf struct {
	Account common.Address
}

// Decimals is ERC-20 decimals()
type Decimals struct{}

// DepositForBurnWithCaller burns on the source chain, restricting who may mint
type DepositForBurnWithCaller struct {
	Amount            *big.Int
	DestinationDomain uint32
	MintRecipient     [32]byte
	BurnToken         common.Address
	DestinationCaller [32]byte
}

// DepositForBurnWithHook burns on the source chain and attaches hook data for the destination
type DepositForBurnWithHook struct {
	Amount            *big.Int
	DestinationDomain uint32
	MintRecipient     [32]byte
	BurnToken         common.Address
	HookData          []byte
}

func (Approve) Function() Function                  { return FunctionApprove }
func (BalanceOf) Function() Function                { return FunctionBalanceOf }
func (Decimals) Function() Function                 { return FunctionDecimals }
func (DepositForBurnWithCaller) Function() Function { return FunctionDepositForBurnWithCaller }
func (DepositForBurnWithHook) Function() Function   { return FunctionDepositForBurnWithHook }

func (c Approve) args() ([]byte, error) {
	amount, err := uint256Word(c.Amount)
	if err != nil {
		return nil, err
	}
	return concat(addressWord(c.Spender), amount), nil
}

func (c BalanceOf) args() ([]byte, error) {
	return addressWord(c.Account), nil
}

func (Decimals) args() ([]byte, error) {
	return nil, nil
}

func (c DepositForBurnWithCaller) args() ([]byte, error) {
	amount, err := uint256Word(c.Amount)
	if err != nil {
		return nil, err
	}
	return concat(
		amount,
		uint32Word(c.DestinationDomain),
		c.MintRecipient[:],
		addressWord(c.BurnToken),
		c.DestinationCaller[:],
	), nil
}

func (c DepositForBurnWithHook) args() ([]byte, error) {
	amount, err := uint256Word(c.Amount)
	if err != nil {
		return nil, err
	}
	// five head words; hookData is the only dynamic tail
	return concat(
		amount,
		uint32Word(c.DestinationDomain),
		c.MintRecipient[:],
		addressWord(c.BurnToken),
		uint32Word(5*wordSize),
		bytesTail(c.HookData),
	), nil
}

// Encode returns selector ++ encoded arguments for call
func Encode(call Call) ([]byte, error) {
	if call == nil {
		return nil, domainerrors.UnknownFunctionError("<nil>")
	}
	selector, err := call.Function().Selector()
	if err != nil {
		return nil, err
	}
	args, err := call.args()
	if err != nil {
		return nil, domainerrors.InvalidRequestError(call.Function().String(), err.Error())
	}
	out := make([]byte, 0, 4+len(args))
	out = append(out, selector[:]...)
	return append(out, args...), nil
}

// AddressToBytes32 left-pads an address into a CCTP bytes32 recipient
func AddressToBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr.Bytes())
	return out
}

// DecodeUint256 reads the first return word of an eth_call result
func DecodeUint256(ret []byte) (*big.Int, error) {
	if len(ret) < wordSize {
		return nil, fmt.Errorf("short return data: %d bytes", len(ret))
	}
	return new(big.Int).SetBytes(ret[:wordSize]), nil
}

func uint256Word(v *big.Int) ([]byte, error) {
	if v == nil {
		return nil, errMissingAmount
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative uint256: %s", v)
	}
	if v.BitLen() > 256 {
		return nil, fmt.Errorf("uint256 overflow: %s", v)
	}
	return common.LeftPadBytes(v.Bytes(), wordSize), nil
}

func uint32Word(v uint32) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(uint64(v)).Bytes(), wordSize)
}

func addressWord(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), wordSize)
}

func bytesTail(data []byte) []byte {
	padded := (len(data) + wordSize - 1) / wordSize * wordSize
	return concat(uint32Word(uint32(len(data))), common.RightPadBytes(data, padded))
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
