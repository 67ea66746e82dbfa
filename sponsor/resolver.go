package sponsor

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Resolver picks the sponsor wallet that pays gas for a payer. It never
// returns an error: persistence failures at any step are logged and treated
// as "not found" so a flaky store degrades a settlement to an explicit
// no-sponsor outcome instead of an exception.
type Resolver struct {
	store Store
	log   *zap.Logger
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: store, log: log}
}

// Find resolves the sponsor wallet for a payer address on a network. The
// whitelist rule path is tried first; a rule whose referenced wallet is
// missing falls through to the direct user-address mapping. Returns nil
// when neither path yields a wallet.
func (r *Resolver) Find(ctx context.Context, network, payerAddress string) *SponsorWallet {
	payer := strings.ToLower(payerAddress)

	rule, err := r.store.TopAgentRule(ctx, payer)
	if err != nil {
		r.log.Warn("agent rule lookup failed", zap.String("payer", payer), zap.Error(err))
		rule = nil
	}
	if rule != nil {
		wallet, err := r.store.WalletByID(ctx, rule.SponsorWalletID)
		if err != nil {
			r.log.Warn("sponsor wallet lookup failed",
				zap.String("ruleId", rule.ID),
				zap.String("walletId", rule.SponsorWalletID),
				zap.Error(err))
			wallet = nil
		}
		if wallet != nil {
			return wallet
		}
	}

	wallet, err := r.store.WalletByUserAddress(ctx, network, payer)
	if err != nil {
		r.log.Warn("direct sponsor lookup failed",
			zap.String("network", network),
			zap.String("payer", payer),
			zap.Error(err))
		return nil
	}
	return wallet
}
