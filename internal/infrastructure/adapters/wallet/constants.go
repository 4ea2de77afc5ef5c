package wallet

// Provider methods
const (
	MethodRequestAccounts       = "eth_requestAccounts"
	MethodAccounts              = "eth_accounts"
	MethodChainID               = "eth_chainId"
	MethodCall                  = "eth_call"
	MethodSendTransaction       = "eth_sendTransaction"
	MethodGetTransactionReceipt = "eth_getTransactionReceipt"
	MethodSwitchChain           = "wallet_switchEthereumChain"
)

// Provider notifications
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// EIP-1193 provider error codes
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
)

// Receipt status values
const (
	ReceiptStatusFailed     uint64 = 0
	ReceiptStatusSuccessful uint64 = 1
)
