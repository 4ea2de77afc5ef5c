package cctp

import "context"

// CCTPClient defines the interface for CCTP Iris API operations
type CCTPClient interface {
	// FetchAttestation returns the signed attestation for a burn, or ErrAttestationPending
	FetchAttestation(ctx context.Context, sourceDomain uint32, txHash string) (*Attestation, error)

	// GetFees retrieves the current fee schedule for a transfer between domains
	GetFees(ctx context.Context, sourceDomain, destDomain uint32) (FeesResponse, error)
}

// Ensure Client implements CCTPClient interface
var _ CCTPClient = (*Client)(nil)
