package evm

import (
	"context"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/x402-labs/sponsorpay"
	"github.com/x402-labs/sponsorpay/chains"
)

// Verifier validates exact payment payloads against payment requirements.
// Its public boundary never returns an error: every failure, including
// unexpected RPC failures and malformed input, is reported through
// VerifyResult.InvalidReason so callers can always serialize the outcome.
type Verifier struct {
	registry *chains.Registry
	balances BalanceReader
	log      *zap.Logger
	now      func() time.Time
}

// NewVerifier creates a verifier. The balance reader is the only network
// dependency; everything up to the balance check is pure.
func NewVerifier(registry *chains.Registry, balances BalanceReader, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{
		registry: registry,
		balances: balances,
		log:      log,
		now:      time.Now,
	}
}

// Verify runs the validation pipeline, short-circuiting on the first
// failure: field checks, signature recovery, signer match, on-chain
// balance, time window.
func (v *Verifier) Verify(ctx context.Context, payload *ExactPayload, requirements sponsorpay.PaymentRequirements) sponsorpay.VerifyResult {
	auth := payload.Authorization

	// 1. Field validation: recipient and amount against requirements.
	if !strings.EqualFold(auth.To, requirements.PayTo) {
		return invalid(ReasonFieldsInvalid)
	}
	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return invalid(ReasonFieldsInvalid)
	}
	maxAmount, ok := new(big.Int).SetString(requirements.MaxAmountRequired, 10)
	if !ok {
		return invalid(ReasonFieldsInvalid)
	}
	if value.Cmp(maxAmount) > 0 {
		return invalid(ReasonFieldsInvalid)
	}

	chain, ok := v.registry.Get(requirements.Network)
	if !ok {
		v.log.Warn("verify on unknown network", zap.String("network", requirements.Network))
		return invalid(ReasonVerifyFailed)
	}

	// 2. Signature recovery over the EIP-712 digest.
	signature, err := HexToBytes(payload.Signature)
	if err != nil || len(signature) != 65 {
		return invalid(ReasonInvalidSignature)
	}
	signer, err := RecoverSigner(auth, signature, chain.ChainID, requirements.Asset)
	if err != nil {
		return invalid(ReasonInvalidSignature)
	}

	// 3. Recovered signer must be the authorization's from address.
	if !strings.EqualFold(signer.Hex(), auth.From) {
		return invalid(ReasonSignerMismatch)
	}

	// 4. On-chain balance must cover the authorized value.
	balance, err := v.balances.TokenBalance(ctx, requirements.Network, requirements.Asset, auth.From)
	if err != nil {
		v.log.Warn("balance check failed",
			zap.String("network", requirements.Network),
			zap.String("payer", auth.From),
			zap.Error(err))
		return invalid(ReasonVerifyFailed)
	}
	if balance.Cmp(value) < 0 {
		return invalid(ReasonInsufficientBalance)
	}

	// 5. Time window, both bounds inclusive.
	validAfter, ok := new(big.Int).SetString(auth.ValidAfter, 10)
	if !ok {
		return invalid(ReasonVerifyFailed)
	}
	validBefore, ok := new(big.Int).SetString(auth.ValidBefore, 10)
	if !ok {
		return invalid(ReasonVerifyFailed)
	}
	now := big.NewInt(v.now().Unix())
	if now.Cmp(validAfter) < 0 {
		return invalid(ReasonNotYetValid)
	}
	if now.Cmp(validBefore) > 0 {
		return invalid(ReasonExpired)
	}

	return sponsorpay.VerifyResult{
		IsValid: true,
		Payer:   auth.From,
	}
}

func invalid(reason string) sponsorpay.VerifyResult {
	return sponsorpay.VerifyResult{IsValid: false, InvalidReason: reason}
}
