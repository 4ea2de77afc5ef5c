package bridge

import (
	"fmt"
	"time"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
)

// Timings bounds every waiting phase of a transfer
type Timings struct {
	ReceiptPollInterval         time.Duration `mapstructure:"receipt_poll_interval"`
	ReceiptTimeout              time.Duration `mapstructure:"receipt_timeout"`
	FastAttestationInterval     time.Duration `mapstructure:"fast_attestation_interval"`
	StandardAttestationInterval time.Duration `mapstructure:"standard_attestation_interval"`
	AttestationTimeout          time.Duration `mapstructure:"attestation_timeout"`
}

// DefaultTimings returns the production polling schedule
func DefaultTimings() Timings {
	return Timings{
		ReceiptPollInterval:         2 * time.Second,
		ReceiptTimeout:              60 * time.Second,
		FastAttestationInterval:     2 * time.Second,
		StandardAttestationInterval: 15 * time.Second,
		AttestationTimeout:          30 * time.Minute,
	}
}

// Validate rejects zero or inverted intervals
func (t Timings) Validate() error {
	for name, d := range map[string]time.Duration{
		"receipt_poll_interval":         t.ReceiptPollInterval,
		"receipt_timeout":               t.ReceiptTimeout,
		"fast_attestation_interval":     t.FastAttestationInterval,
		"standard_attestation_interval": t.StandardAttestationInterval,
		"attestation_timeout":           t.AttestationTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if t.ReceiptPollInterval > t.ReceiptTimeout {
		return fmt.Errorf("receipt_poll_interval exceeds receipt_timeout")
	}
	return nil
}

// AttestationInterval returns the poll interval for a settlement mode
func (t Timings) AttestationInterval(mode entities.TransferMode) time.Duration {
	if mode == entities.TransferModeFast {
		return t.FastAttestationInterval
	}
	return t.StandardAttestationInterval
}

// Config configures the transfer service
type Config struct {
	Timings     Timings       `mapstructure:"timings"`
	EventBuffer int           `mapstructure:"event_buffer"`
	Retention   time.Duration `mapstructure:"retention"` // how long finished executions stay queryable
}

// DefaultConfig returns the default service configuration
func DefaultConfig() Config {
	return Config{
		Timings:     DefaultTimings(),
		EventBuffer: 64,
		Retention:   24 * time.Hour,
	}
}
