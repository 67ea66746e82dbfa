package sponsor

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-process staging
// deployments. It applies the same match and tie-break semantics as the
// Mongo store.
type MemoryStore struct {
	mu      sync.RWMutex
	wallets map[string]SponsorWallet
	rules   []SponsorRule
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{wallets: make(map[string]SponsorWallet)}
}

// PutWallet inserts or replaces a sponsor wallet.
func (s *MemoryStore) PutWallet(w SponsorWallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.ID] = w
}

// PutRule inserts a whitelist rule.
func (s *MemoryStore) PutRule(r SponsorRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
}

// TopAgentRule returns the winning enabled whitelist rule for an agent
// address: priority descending, ties broken by newest created_at.
func (s *MemoryStore) TopAgentRule(_ context.Context, agentAddress string) (*SponsorRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent := strings.ToLower(agentAddress)
	var matches []SponsorRule
	for _, r := range s.rules {
		if r.RuleType == RuleTypeAgentWhitelist && r.Enabled && strings.ToLower(r.AgentAddress) == agent {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority > matches[j].Priority
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	top := matches[0]
	return &top, nil
}

// WalletByID returns the sponsor wallet with the given id, or nil.
func (s *MemoryStore) WalletByID(_ context.Context, id string) (*SponsorWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if w, ok := s.wallets[id]; ok {
		return &w, nil
	}
	return nil, nil
}

// WalletByUserAddress returns the wallet directly mapped to a user address
// on a network, or nil.
func (s *MemoryStore) WalletByUserAddress(_ context.Context, network, userAddress string) (*SponsorWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user := strings.ToLower(userAddress)
	for _, w := range s.wallets {
		if w.Network == network && strings.ToLower(w.UserWalletAddress) == user {
			wallet := w
			return &wallet, nil
		}
	}
	return nil, nil
}
