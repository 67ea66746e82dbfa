// Package sponsorpay implements the x402 "exact" payment scheme with
// sponsor-wallet gasless settlement: verification of EIP-3009
// transferWithAuthorization payloads, on-chain or relayed execution, and
// sponsor wallet resolution.
package sponsorpay

import "strings"

// SchemeExact is the x402 scheme identifier this facilitator implements.
const SchemeExact = "exact"

// PaymentRequirements are the server-stated constraints for an accepted
// payment. Created per payment-eligible request and never persisted.
type PaymentRequirements struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxAmountRequired string `json:"maxAmountRequired"` // integer string, token base units
}

// VerifyResult is the outcome of verifying a payment payload against
// requirements. Verification never fails with an error: every failure mode
// is reported through InvalidReason.
type VerifyResult struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettlementResult is the outcome of a single settlement attempt. Produced
// once per attempt and never mutated after return. Gas fields are decimal
// strings to avoid precision loss when serialized; they are only populated
// when receipt data could be fetched.
type SettlementResult struct {
	Success           bool   `json:"success"`
	TransactionHash   string `json:"transactionHash,omitempty"`
	Error             string `json:"error,omitempty"`
	Payer             string `json:"payer,omitempty"`
	Network           string `json:"network,omitempty"`
	GasUsed           string `json:"gasUsed,omitempty"`
	EffectiveGasPrice string `json:"effectiveGasPrice,omitempty"`
	GasCostWei        string `json:"gasCostWei,omitempty"`
}

// SettlementKey derives the idempotency key for a settlement attempt from
// the payer address and the authorization nonce. The token contract enforces
// nonce uniqueness per (from, nonce) pair on-chain, so the same pair is the
// natural dedup key off-chain.
func SettlementKey(from, nonce string) string {
	return strings.ToLower(from) + ":" + strings.ToLower(nonce)
}
