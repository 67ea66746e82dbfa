// Command facilitatord runs the x402 exact-scheme facilitator: payment
// verification and settlement with sponsor-wallet gasless relay support.
package main

import (
	"context"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/x402-labs/sponsorpay"
	"github.com/x402-labs/sponsorpay/chains"
	"github.com/x402-labs/sponsorpay/config"
	"github.com/x402-labs/sponsorpay/evm"
	httpservice "github.com/x402-labs/sponsorpay/http"
	"github.com/x402-labs/sponsorpay/relay"
	"github.com/x402-labs/sponsorpay/signer"
	"github.com/x402-labs/sponsorpay/sponsor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet; stderr is all we have.
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("facilitatord exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	registry := chains.NewRegistry()
	if cfg.ChainsFile != "" {
		if err := registry.LoadOverrides(cfg.ChainsFile); err != nil {
			return err
		}
	}

	networks := cfg.Networks
	if len(networks) == 0 {
		networks = registry.Networks()
	}

	reader := signer.NewChainReader(registry)
	verifier := evm.NewVerifier(registry, reader, log.Named("verifier"))

	settler, err := buildSettler(cfg, registry, reader, verifier, networks, log)
	if err != nil {
		return err
	}

	cache := sponsorpay.NewSettlementCache(time.Duration(cfg.SettlementCacheTTLSeconds) * time.Second)
	service := httpservice.NewService(verifier, settler, cache, networks, log.Named("http"))

	log.Info("facilitatord listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("mode", cfg.Mode),
		zap.Strings("networks", networks))
	return service.Router().Run(cfg.ListenAddr)
}

func buildSettler(
	cfg *config.Config,
	registry *chains.Registry,
	reader *signer.ChainReader,
	verifier *evm.Verifier,
	networks []string,
	log *zap.Logger,
) (httpservice.Settler, error) {
	if cfg.Mode == config.ModeDirect {
		clients := make(map[string]evm.WalletClient, len(networks))
		for _, network := range networks {
			chain, ok := registry.Get(network)
			if !ok {
				continue
			}
			client, err := signer.NewClient(cfg.PrivateKey, chain.RPCURL, chain.ChainID)
			if err != nil {
				return nil, err
			}
			clients[network] = client
		}
		return evm.NewDirectSettler(verifier, clients, log.Named("settler")), nil
	}

	relayClient, err := relay.NewClient(relay.ClientConfig{
		BaseURL: cfg.RelayBaseURL,
		APIKey:  cfg.RelayAPIKey,
		Logger:  log.Named("relay"),
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}
	if err := mongoClient.Ping(ctx, nil); err != nil {
		return nil, err
	}

	store := sponsor.NewMongoStore(mongoClient.Database(cfg.MongoDatabase))
	resolver := sponsor.NewResolver(store, log.Named("sponsor"))

	return relay.NewSettler(verifier, relayClient, resolver, registry, reader, log.Named("settler")), nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
