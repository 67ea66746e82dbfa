// Package chains holds the static chain registry: the mapping from a
// network identifier to its chain ID, RPC endpoint and USDC contract.
package chains

import (
	"fmt"
	"math/big"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Chain describes one supported network.
type Chain struct {
	ChainID     *big.Int
	RPCURL      string
	USDCAddress string
	IsTestnet   bool
}

// Registry is a lookup table from network identifier to chain parameters.
// It is populated at construction and read-only afterwards; lookups have no
// side effects and the only failure mode is an unknown network.
type Registry struct {
	chains map[string]Chain
}

// NewRegistry returns a registry preloaded with the built-in networks.
func NewRegistry() *Registry {
	r := &Registry{chains: make(map[string]Chain)}
	for id, c := range defaultChains {
		r.chains[id] = c
	}
	return r
}

// Get looks up a network. The second return value is false for unknown
// networks; callers must handle the absence.
func (r *Registry) Get(network string) (Chain, bool) {
	c, ok := r.chains[network]
	return c, ok
}

// Networks returns the known network identifiers, sorted.
func (r *Registry) Networks() []string {
	ids := make([]string, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// chainOverride is the YAML shape for one registry entry.
type chainOverride struct {
	ChainID     int64  `yaml:"chainId"`
	RPCURL      string `yaml:"rpcUrl"`
	USDCAddress string `yaml:"usdcAddress"`
	Testnet     bool   `yaml:"testnet"`
}

type overridesFile struct {
	Networks map[string]chainOverride `yaml:"networks"`
}

// LoadOverrides merges networks from a YAML file into the registry.
// Existing entries are replaced wholesale; new networks are added.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read chains file: %w", err)
	}

	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse chains file: %w", err)
	}

	for id, o := range f.Networks {
		if o.ChainID == 0 {
			return fmt.Errorf("network %s: chainId is required", id)
		}
		if o.USDCAddress == "" {
			return fmt.Errorf("network %s: usdcAddress is required", id)
		}
		r.chains[id] = Chain{
			ChainID:     big.NewInt(o.ChainID),
			RPCURL:      o.RPCURL,
			USDCAddress: o.USDCAddress,
			IsTestnet:   o.Testnet,
		}
	}
	return nil
}

var defaultChains = map[string]Chain{
	"ethereum": {
		ChainID:     big.NewInt(1),
		RPCURL:      "https://eth.llamarpc.com",
		USDCAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	},
	"base": {
		ChainID:     big.NewInt(8453),
		RPCURL:      "https://mainnet.base.org",
		USDCAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	},
	"base-sepolia": {
		ChainID:     big.NewInt(84532),
		RPCURL:      "https://sepolia.base.org",
		USDCAddress: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		IsTestnet:   true,
	},
	"polygon": {
		ChainID:     big.NewInt(137),
		RPCURL:      "https://polygon-rpc.com",
		USDCAddress: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
	},
	"arbitrum": {
		ChainID:     big.NewInt(42161),
		RPCURL:      "https://arb1.arbitrum.io/rpc",
		USDCAddress: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
	},
	"optimism": {
		ChainID:     big.NewInt(10),
		RPCURL:      "https://mainnet.optimism.io",
		USDCAddress: "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
	},
	"avalanche": {
		ChainID:     big.NewInt(43114),
		RPCURL:      "https://api.avax.network/ext/bc/C/rpc",
		USDCAddress: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
	},
	"sepolia": {
		ChainID:     big.NewInt(11155111),
		RPCURL:      "https://ethereum-sepolia-rpc.publicnode.com",
		USDCAddress: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		IsTestnet:   true,
	},
}
