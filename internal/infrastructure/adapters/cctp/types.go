package cctp

import "github.com/shopspring/decimal"

// MessagesResponse represents the response from the v2 messages API
type MessagesResponse struct {
	Messages []CCTPMessage `json:"messages"`
}

// CCTPMessage represents a single CCTP message with attestation
type CCTPMessage struct {
	Message        string          `json:"message"`
	EventNonce     string          `json:"eventNonce"`
	Attestation    string          `json:"attestation"`
	CctpVersion    int             `json:"cctpVersion"`
	Status         string          `json:"status"`
	DelayReason    string          `json:"delayReason,omitempty"`
	DecodedMessage *DecodedMessage `json:"decodedMessage,omitempty"`
}

// DecodedMessage is the API's decoding of the message header
type DecodedMessage struct {
	SourceDomain              string              `json:"sourceDomain"`
	DestinationDomain         string              `json:"destinationDomain"`
	Nonce                     string              `json:"nonce"`
	Sender                    string              `json:"sender"`
	Recipient                 string              `json:"recipient"`
	DestinationCaller         string              `json:"destinationCaller"`
	MinFinalityThreshold      string              `json:"minFinalityThreshold"`
	FinalityThresholdExecuted string              `json:"finalityThresholdExecuted"`
	MessageBody               string              `json:"messageBody"`
	DecodedMessageBody        *DecodedMessageBody `json:"decodedMessageBody,omitempty"`
}

// DecodedMessageBody is the API's decoding of the burn message body
type DecodedMessageBody struct {
	BurnToken     string `json:"burnToken"`
	MintRecipient string `json:"mintRecipient"`
	Amount        string `json:"amount"`
	MessageSender string `json:"messageSender"`
	MaxFee        string `json:"maxFee"`
	FeeExecuted   string `json:"feeExecuted"`
	HookData      string `json:"hookData"`
}

// Attestation is a completed, signed message ready for the destination mint
type Attestation struct {
	Message                   string `json:"message"`
	Attestation               string `json:"attestation"`
	EventNonce                string `json:"event_nonce"`
	CctpVersion               int    `json:"cctp_version"`
	FinalityThresholdExecuted string `json:"finality_threshold_executed,omitempty"`
	HookData                  string `json:"hook_data,omitempty"`
}

// FeesResponse is the fee schedule between two domains, one entry per finality threshold
type FeesResponse []Fee

// Fee represents fee details
type Fee struct {
	FinalityThreshold uint32          `json:"finalityThreshold"`
	MinimumFee        decimal.Decimal `json:"minimumFee"` // in basis points
}

// For returns the fee entry for a finality threshold
func (f FeesResponse) For(threshold uint32) (Fee, error) {
	for _, fee := range f {
		if fee.FinalityThreshold == threshold {
			return fee, nil
		}
	}
	return Fee{}, ErrNoFees
}
