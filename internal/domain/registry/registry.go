// Package registry holds the immutable table of CCTP-enabled chains.
// A registry is validated once at load; a duplicate domain or chain id is a
// configuration error and the registry is never built.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
	domainerrors "github.com/rail-service/cctp_bridge/internal/domain/errors"
)

var (
	ErrEmptyRegistry    = errors.New("chain registry is empty")
	ErrDuplicateDomain  = errors.New("duplicate CCTP domain")
	ErrDuplicateChainID = errors.New("duplicate chain id")
	ErrInvalidChain     = errors.New("invalid chain config")
)

// Registry is a read-only lookup table safe to share between goroutines
type Registry struct {
	chains    []entities.ChainConfig
	byChainID map[uint64]int
	byDomain  map[uint32]int
}

// New validates chains and builds a registry
func New(chains []entities.ChainConfig) (*Registry, error) {
	if len(chains) == 0 {
		return nil, ErrEmptyRegistry
	}

	r := &Registry{
		chains:    make([]entities.ChainConfig, 0, len(chains)),
		byChainID: make(map[uint64]int, len(chains)),
		byDomain:  make(map[uint32]int, len(chains)),
	}

	for _, c := range chains {
		if err := validateChain(c); err != nil {
			return nil, err
		}
		if prev, ok := r.byDomain[c.Domain]; ok {
			return nil, fmt.Errorf("%w: %d used by %s and %s", ErrDuplicateDomain, c.Domain, r.chains[prev].Name, c.Name)
		}
		if prev, ok := r.byChainID[c.ChainID]; ok {
			return nil, fmt.Errorf("%w: %d used by %s and %s", ErrDuplicateChainID, c.ChainID, r.chains[prev].Name, c.Name)
		}
		r.byDomain[c.Domain] = len(r.chains)
		r.byChainID[c.ChainID] = len(r.chains)
		r.chains = append(r.chains, c)
	}

	return r, nil
}

// MustNew is New for static tables known to be valid
func MustNew(chains []entities.ChainConfig) *Registry {
	r, err := New(chains)
	if err != nil {
		panic(fmt.Sprintf("invalid chain registry: %v", err))
	}
	return r
}

func validateChain(c entities.ChainConfig) error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: missing name", ErrInvalidChain)
	case c.ChainID == 0:
		return fmt.Errorf("%w: %s has no chain id", ErrInvalidChain, c.Name)
	case c.TokenMessenger == (common.Address{}):
		return fmt.Errorf("%w: %s has no token messenger", ErrInvalidChain, c.Name)
	case c.MessageTransmitter == (common.Address{}):
		return fmt.Errorf("%w: %s has no message transmitter", ErrInvalidChain, c.Name)
	case c.USDC == (common.Address{}):
		return fmt.Errorf("%w: %s has no USDC address", ErrInvalidChain, c.Name)
	case c.ExplorerURL != "" && !strings.Contains(c.ExplorerURL, "{tx}"):
		return fmt.Errorf("%w: %s explorer url lacks {tx} placeholder", ErrInvalidChain, c.Name)
	}
	return nil
}

// Chains returns the registered chains ordered by domain
func (r *Registry) Chains() []entities.ChainConfig {
	out := make([]entities.ChainConfig, len(r.chains))
	copy(out, r.chains)
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// ByChainID looks up a chain by its native id
func (r *Registry) ByChainID(chainID uint64) (entities.ChainConfig, error) {
	idx, ok := r.byChainID[chainID]
	if !ok {
		return entities.ChainConfig{}, domainerrors.ChainNotRegisteredError(chainID)
	}
	return r.chains[idx], nil
}

// ByDomain looks up a chain by its CCTP domain
func (r *Registry) ByDomain(domain uint32) (entities.ChainConfig, bool) {
	idx, ok := r.byDomain[domain]
	if !ok {
		return entities.ChainConfig{}, false
	}
	return r.chains[idx], true
}

// ByName looks up a chain by case-insensitive name
func (r *Registry) ByName(name string) (entities.ChainConfig, bool) {
	for _, c := range r.chains {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return entities.ChainConfig{}, false
}

// Contains reports whether the chain id is registered
func (r *Registry) Contains(chainID uint64) bool {
	_, ok := r.byChainID[chainID]
	return ok
}
