package bridge

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	"github.com/rail-service/cctp_bridge/internal/infrastructure/adapters/wallet"
)

// MessageSentTopic is the topic of MessageTransmitter's MessageSent(bytes) event
var MessageSentTopic = crypto.Keccak256Hash([]byte("MessageSent(bytes)"))

const (
	nonceOffset = 12
	nonceLength = 32
)

// ToBaseUnits converts a USDC amount to base units, truncating extra fractional digits
func ToBaseUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(entities.USDCDecimals).Truncate(0).BigInt()
}

// FromBaseUnits converts base units back to a USDC amount
func FromBaseUnits(units *big.Int, decimals int32) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -decimals)
}

// sentMessage is the message and nonce recovered from a burn receipt
type sentMessage struct {
	Message []byte
	Nonce   common.Hash
}

// extractMessage finds the MessageSent log emitted by transmitter and decodes its message
func extractMessage(receipt *wallet.Receipt, transmitter common.Address) (*sentMessage, bool) {
	if receipt == nil {
		return nil, false
	}
	for _, l := range receipt.Logs {
		if l.Address != transmitter || len(l.Topics) == 0 || l.Topics[0] != MessageSentTopic {
			continue
		}
		msg, ok := decodeBytesArg(l.Data)
		if !ok || len(msg) < nonceOffset+nonceLength {
			continue
		}
		return &sentMessage{
			Message: msg,
			Nonce:   common.BytesToHash(msg[nonceOffset : nonceOffset+nonceLength]),
		}, true
	}
	return nil, false
}

// decodeBytesArg decodes log data holding a single dynamic bytes argument
func decodeBytesArg(data []byte) ([]byte, bool) {
	if len(data) < 64 {
		return nil, false
	}
	offset := new(big.Int).SetBytes(data[:32])
	if !offset.IsUint64() || offset.Uint64() > uint64(len(data)-32) {
		return nil, false
	}
	start := offset.Uint64()
	length := new(big.Int).SetBytes(data[start : start+32])
	if !length.IsUint64() || length.Uint64() > uint64(len(data))-start-32 {
		return nil, false
	}
	return data[start+32 : start+32+length.Uint64()], true
}

// attestedNonce parses the eventNonce returned with an attestation; zero means unassigned
func attestedNonce(eventNonce string) (common.Hash, bool) {
	if eventNonce == "" {
		return common.Hash{}, false
	}
	var n *big.Int
	if raw, err := hexutil.Decode(eventNonce); err == nil {
		if len(raw) > 32 {
			return common.Hash{}, false
		}
		n = new(big.Int).SetBytes(raw)
	} else if v, ok := new(big.Int).SetString(eventNonce, 10); ok {
		n = v
	} else {
		return common.Hash{}, false
	}
	if n.Sign() <= 0 || n.BitLen() > 256 {
		return common.Hash{}, false
	}
	return common.BigToHash(n), true
}

func hookDataMatches(attested string, want []byte) bool {
	raw, err := hexutil.Decode(attested)
	if err != nil {
		return false
	}
	return bytes.Equal(raw, want)
}
