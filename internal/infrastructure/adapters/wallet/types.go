package wallet

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Receipt is the subset of a transaction receipt the transfer flow reads
type Receipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	Status          hexutil.Uint64 `json:"status"`
	BlockNumber     *hexutil.Big   `json:"blockNumber"`
	Logs            []Log          `json:"logs"`
}

// Succeeded reports whether the transaction executed without reverting
func (r *Receipt) Succeeded() bool {
	return uint64(r.Status) == ReceiptStatusSuccessful
}

// Log is an event log entry in a receipt
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

// RPCError is an EIP-1193 provider error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error [%d]: %s", e.Code, e.Message)
}

// ErrorCode implements go-ethereum's rpc.Error
func (e *RPCError) ErrorCode() int {
	return e.Code
}

type callArgs struct {
	From *common.Address `json:"from,omitempty"`
	To   common.Address  `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

type switchChainParams struct {
	ChainID hexutil.Uint64 `json:"chainId"`
}

// decodeInto copies v into result through its JSON form, mirroring how a provider returns values
func decodeInto(result interface{}, v interface{}) error {
	if result == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal provider result: %w", err)
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("unmarshal provider result: %w", err)
	}
	return nil
}
