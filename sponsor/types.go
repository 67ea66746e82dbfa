// Package sponsor resolves which server-custodied sponsor wallet pays gas
// for a given payer address.
package sponsor

import "time"

// RuleTypeAgentWhitelist is the only rule type the resolver evaluates.
const RuleTypeAgentWhitelist = "agent_whitelist"

// SponsorWallet is a server-custodied wallet record. Wallets are created by
// an out-of-band onboarding flow and their balance is mutated externally as
// transactions execute; this package only reads them.
type SponsorWallet struct {
	ID                 string `bson:"_id" json:"id"`
	UserWalletAddress  string `bson:"user_wallet_address" json:"user_wallet_address"`
	Network            string `bson:"network" json:"network"`
	SponsorAddress     string `bson:"sponsor_address" json:"sponsor_address"`
	TurnkeyWalletID    string `bson:"turnkey_wallet_id" json:"turnkey_wallet_id"`
	SmartWalletAddress string `bson:"smart_wallet_address,omitempty" json:"smart_wallet_address,omitempty"`
	Balance            string `bson:"balance" json:"balance"`
}

// SponsorRule is a whitelist entry mapping an agent address to a sponsor
// wallet. When several enabled rules match an agent, the highest priority
// wins; equal priorities break toward the most recently created rule.
type SponsorRule struct {
	ID              string    `bson:"_id" json:"id"`
	RuleType        string    `bson:"rule_type" json:"rule_type"`
	AgentAddress    string    `bson:"agent_address" json:"agent_address"`
	SponsorWalletID string    `bson:"sponsor_wallet_id" json:"sponsor_wallet_id"`
	Enabled         bool      `bson:"enabled" json:"enabled"`
	Priority        int       `bson:"priority" json:"priority"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}
