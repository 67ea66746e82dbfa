package sponsor

import "context"

// Store is the persistence boundary for sponsor wallets and whitelist
// rules. Lookups that find nothing return (nil, nil); errors are reserved
// for persistence failures.
type Store interface {
	// TopAgentRule returns the winning enabled agent_whitelist rule for an
	// agent address: highest priority first, ties broken by newest
	// created_at. The address is matched lowercased.
	TopAgentRule(ctx context.Context, agentAddress string) (*SponsorRule, error)

	// WalletByID returns the sponsor wallet with the given id.
	WalletByID(ctx context.Context, id string) (*SponsorWallet, error)

	// WalletByUserAddress returns the sponsor wallet directly mapped to a
	// user wallet address on a network. The address is matched lowercased.
	WalletByUserAddress(ctx context.Context, network, userAddress string) (*SponsorWallet, error)
}
