package sponsor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	walletsCollection = "sponsor_wallets"
	rulesCollection   = "sponsor_rules"
)

// MongoStore implements Store over the application's document database.
type MongoStore struct {
	wallets *mongo.Collection
	rules   *mongo.Collection
}

// NewMongoStore creates a store over the sponsor_wallets and sponsor_rules
// collections of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		wallets: db.Collection(walletsCollection),
		rules:   db.Collection(rulesCollection),
	}
}

// TopAgentRule returns the winning enabled whitelist rule for an agent
// address. The sort order is the tie-break contract: priority descending,
// then created_at descending.
func (s *MongoStore) TopAgentRule(ctx context.Context, agentAddress string) (*SponsorRule, error) {
	filter := bson.D{
		{Key: "rule_type", Value: RuleTypeAgentWhitelist},
		{Key: "agent_address", Value: strings.ToLower(agentAddress)},
		{Key: "enabled", Value: true},
	}
	opts := options.FindOne().SetSort(bson.D{
		{Key: "priority", Value: -1},
		{Key: "created_at", Value: -1},
	})

	var rule SponsorRule
	err := s.rules.FindOne(ctx, filter, opts).Decode(&rule)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sponsor rules: %w", err)
	}
	return &rule, nil
}

// WalletByID returns the sponsor wallet with the given id.
func (s *MongoStore) WalletByID(ctx context.Context, id string) (*SponsorWallet, error) {
	var wallet SponsorWallet
	err := s.wallets.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&wallet)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sponsor wallet %s: %w", id, err)
	}
	return &wallet, nil
}

// WalletByUserAddress returns the sponsor wallet directly mapped to a user
// wallet address on a network.
func (s *MongoStore) WalletByUserAddress(ctx context.Context, network, userAddress string) (*SponsorWallet, error) {
	filter := bson.D{
		{Key: "network", Value: network},
		{Key: "user_wallet_address", Value: strings.ToLower(userAddress)},
	}

	var wallet SponsorWallet
	err := s.wallets.FindOne(ctx, filter).Decode(&wallet)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sponsor wallet for %s: %w", userAddress, err)
	}
	return &wallet, nil
}
