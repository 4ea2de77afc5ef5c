package registry

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
)

// CCTP V2 contracts are deployed at the same address on every EVM chain
var (
	TokenMessengerV2     = common.HexToAddress("0x28b5a0e9C621a5BadaA536219b3a228C8168cf5d")
	MessageTransmitterV2 = common.HexToAddress("0x81D40F21F12A8F0E3252Bccb954D722d4c464B64")
)

// Domain IDs
const (
	DomainEthereum  uint32 = 0
	DomainAvalanche uint32 = 1
	DomainOptimism  uint32 = 2
	DomainArbitrum  uint32 = 3
	DomainBase      uint32 = 6
	DomainPolygon   uint32 = 7
	DomainUnichain  uint32 = 10
	DomainLinea     uint32 = 11
)

func mainnetChain(name string, chainID uint64, domain uint32, usdc, explorer string) entities.ChainConfig {
	return entities.ChainConfig{
		Name:               name,
		ChainID:            chainID,
		Domain:             domain,
		MessageTransmitter: MessageTransmitterV2,
		TokenMessenger:     TokenMessengerV2,
		USDC:               common.HexToAddress(usdc),
		ExplorerURL:        explorer,
	}
}

// MainnetChains returns the built-in CCTP V2 mainnet table
func MainnetChains() []entities.ChainConfig {
	return []entities.ChainConfig{
		mainnetChain("Ethereum", 1, DomainEthereum, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "https://etherscan.io/tx/{tx}"),
		mainnetChain("Avalanche", 43114, DomainAvalanche, "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", "https://snowtrace.io/tx/{tx}"),
		mainnetChain("Optimism", 10, DomainOptimism, "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85", "https://optimistic.etherscan.io/tx/{tx}"),
		mainnetChain("Arbitrum", 42161, DomainArbitrum, "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", "https://arbiscan.io/tx/{tx}"),
		mainnetChain("Base", 8453, DomainBase, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "https://basescan.org/tx/{tx}"),
		mainnetChain("Polygon", 137, DomainPolygon, "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", "https://polygonscan.com/tx/{tx}"),
		mainnetChain("Unichain", 130, DomainUnichain, "0x078D782b760474a361dDA0AF3839290b0EF57AD6", "https://uniscan.xyz/tx/{tx}"),
		mainnetChain("Linea", 59144, DomainLinea, "0x176211869cA2b568f2A7D4EE941E073a821EE1ff", "https://lineascan.build/tx/{tx}"),
	}
}

// Mainnet returns a validated registry of the built-in mainnet table
func Mainnet() *Registry {
	return MustNew(MainnetChains())
}
