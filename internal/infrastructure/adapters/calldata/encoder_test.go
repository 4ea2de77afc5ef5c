package calldata

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
)

var (
	spender   = common.HexToAddress("0x28b5a0e9C621a5BadaA536219b3a228C8168cf5d")
	usdc      = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	recipient = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func word(t *testing.T, data []byte, i int) []byte {
	t.Helper()
	start := 4 + i*32
	require.GreaterOrEqual(t, len(data), start+32)
	return data[start : start+32]
}

func TestSelectors(t *testing.T) {
	cases := map[Function]string{
		FunctionApprove:   "0x095ea7b3",
		FunctionBalanceOf: "0x70a08231",
		FunctionDecimals:  "0x313ce567",
	}
	for fn, want := range cases {
		sel, err := fn.Selector()
		require.NoError(t, err)
		assert.Equal(t, want, hexutil.Encode(sel[:]), fn.String())
	}
}

func TestUnknownFunction(t *testing.T) {
	_, err := Function(99).Selector()
	assert.ErrorIs(t, err, domainerrors.ErrUnknownFunction)

	_, err = ParseFunction("transferFrom")
	assert.ErrorIs(t, err, domainerrors.ErrUnknownFunction)

	_, err = Encode(nil)
	assert.ErrorIs(t, err, domainerrors.ErrUnknownFunction)

	fn, err := ParseFunction("depositForBurnWithHook")
	require.NoError(t, err)
	assert.Equal(t, FunctionDepositForBurnWithHook, fn)
}

func TestEncodeApprove(t *testing.T) {
	data, err := Encode(Approve{Spender: spender, Amount: big.NewInt(10_000_000)})
	require.NoError(t, err)

	assert.Len(t, data, 4+2*32)
	assert.Equal(t, "0x095ea7b3", hexutil.Encode(data[:4]))
	assert.Equal(t, common.LeftPadBytes(spender.Bytes(), 32), word(t, data, 0))
	assert.Equal(t, int64(10_000_000), new(big.Int).SetBytes(word(t, data, 1)).Int64())
}

func TestEncodeRejectsBadAmounts(t *testing.T) {
	_, err := Encode(Approve{Spender: spender})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidRequest)

	_, err = Encode(Approve{Spender: spender, Amount: big.NewInt(-1)})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidRequest)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = Encode(DepositForBurnWithCaller{Amount: tooBig})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidRequest)
}

func TestEncodeDeterministic(t *testing.T) {
	call := DepositForBurnWithHook{
		Amount:            big.NewInt(10_000_000),
		DestinationDomain: 3,
		MintRecipient:     AddressToBytes32(recipient),
		BurnToken:         usdc,
		HookData:          []byte{0x04},
	}
	first, err := Encode(call)
	require.NoError(t, err)
	second, err := Encode(call)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))
}

func TestEncodeDepositForBurnWithCaller(t *testing.T) {
	data, err := Encode(DepositForBurnWithCaller{
		Amount:            big.NewInt(10_000_000),
		DestinationDomain: 3,
		MintRecipient:     AddressToBytes32(recipient),
		BurnToken:         usdc,
	})
	require.NoError(t, err)

	assert.Len(t, data, 4+5*32)
	assert.Equal(t, uint64(3), new(big.Int).SetBytes(word(t, data, 1)).Uint64())
	assert.Equal(t, common.LeftPadBytes(recipient.Bytes(), 32), word(t, data, 2))
	assert.Equal(t, common.LeftPadBytes(usdc.Bytes(), 32), word(t, data, 3))
	assert.Equal(t, make([]byte, 32), word(t, data, 4))
}

func TestEncodeDepositForBurnWithHookPadsTail(t *testing.T) {
	data, err := Encode(DepositForBurnWithHook{
		Amount:            big.NewInt(1),
		DestinationDomain: 3,
		MintRecipient:     AddressToBytes32(recipient),
		BurnToken:         usdc,
		HookData:          []byte{0x04},
	})
	require.NoError(t, err)

	// 5 head words + length + one padded content word
	assert.Len(t, data, 4+7*32)
	assert.Equal(t, uint64(0xa0), new(big.Int).SetBytes(word(t, data, 4)).Uint64())
	assert.Equal(t, uint64(1), new(big.Int).SetBytes(word(t, data, 5)).Uint64())
	content := word(t, data, 6)
	assert.Equal(t, byte(0x04), content[0])
	assert.Equal(t, make([]byte, 31), content[1:])

	long := bytes.Repeat([]byte{0xab}, 33)
	data, err = Encode(DepositForBurnWithHook{Amount: big.NewInt(1), HookData: long})
	require.NoError(t, err)
	assert.Len(t, data, 4+(5+1+2)*32)
	assert.Equal(t, 0, (len(data)-4)%32)
}

func TestEncodeEmptyHookData(t *testing.T) {
	data, err := Encode(DepositForBurnWithHook{Amount: big.NewInt(1)})
	require.NoError(t, err)
	assert.Len(t, data, 4+6*32)
	assert.Equal(t, make([]byte, 32), word(t, data, 5))
}

func TestBalanceOfAndDecimals(t *testing.T) {
	data, err := Encode(BalanceOf{Account: recipient})
	require.NoError(t, err)
	assert.Equal(t, "0x70a08231", hexutil.Encode(data[:4]))
	assert.Len(t, data, 36)

	data, err = Encode(Decimals{})
	require.NoError(t, err)
	assert.Equal(t, "0x313ce567", hexutil.Encode(data))
}

func TestDecodeUint256(t *testing.T) {
	ret := common.LeftPadBytes(big.NewInt(6).Bytes(), 32)
	v, err := DecodeUint256(ret)
	require.NoError(t, err)
	assert.Equal(t, int64(6), v.Int64())

	_, err = DecodeUint256([]byte{0x01})
	assert.Error(t, err)
}

func TestAddressToBytes32(t *testing.T) {
	out := AddressToBytes32(recipient)
	assert.Equal(t, make([]byte, 12), out[:12])
	assert.Equal(t, recipient.Bytes(), out[12:])
}
