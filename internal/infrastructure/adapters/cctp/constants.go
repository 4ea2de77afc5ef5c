package cctp

const (
	// API Hosts
	IrisMainnetURL = "https://iris-api.circle.com"
	IrisSandboxURL = "https://iris-api-sandbox.circle.com"

	// Rate limiting
	MaxRequestsPerSecond = 35

	// Message statuses
	MessageStatusPending  = "pending_confirmations"
	MessageStatusComplete = "complete"

	// Placeholder the API returns in the attestation field until signing finishes
	attestationPlaceholder = "PENDING"

	// Finality thresholds reported by the fees endpoint
	FinalityThresholdFast     uint32 = 1000
	FinalityThresholdStandard uint32 = 2000
)
