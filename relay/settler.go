package relay

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/x402-labs/sponsorpay"
	"github.com/x402-labs/sponsorpay/chains"
	"github.com/x402-labs/sponsorpay/evm"
	"github.com/x402-labs/sponsorpay/sponsor"
)

// transferWithAuthorizationMethod is the human-readable signature the relay
// expects for the contract-write call.
const transferWithAuthorizationMethod = "function transferWithAuthorization(" +
	"address from, address to, uint256 value, uint256 validAfter, " +
	"uint256 validBefore, bytes32 nonce, uint8 v, bytes32 r, bytes32 s)"

// ErrNoSponsorWallet is the settlement error when no sponsor wallet covers
// the payer.
const ErrNoSponsorWallet = "No sponsor wallet found for payer"

// Settler executes verified payments through the gasless relay: a sponsor
// wallet pays gas on the payer's behalf. Its public boundary never returns
// an error; every failure, including unexpected ones, lands in
// SettlementResult.Error.
type Settler struct {
	verifier *evm.Verifier
	client   *Client
	sponsors *sponsor.Resolver
	registry *chains.Registry
	receipts evm.ReceiptFetcher
	log      *zap.Logger
}

// NewSettler creates a relayed settler. The receipt fetcher is optional:
// when present, confirmed settlements are enriched with gas accounting on a
// best-effort basis.
func NewSettler(
	verifier *evm.Verifier,
	client *Client,
	sponsors *sponsor.Resolver,
	registry *chains.Registry,
	receipts evm.ReceiptFetcher,
	log *zap.Logger,
) *Settler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Settler{
		verifier: verifier,
		client:   client,
		sponsors: sponsors,
		registry: registry,
		receipts: receipts,
		log:      log,
	}
}

// Settle verifies the payload, resolves a sponsor wallet, submits the
// transferWithAuthorization call through the relay and drives the result to
// a terminal state: immediate hash, confirmed after polling, failed, or
// polling timeout.
func (s *Settler) Settle(ctx context.Context, payload *evm.ExactPayload, requirements sponsorpay.PaymentRequirements) sponsorpay.SettlementResult {
	verifyResult := s.verifier.Verify(ctx, payload, requirements)
	if !verifyResult.IsValid {
		return s.failure(requirements, verifyResult.InvalidReason, "")
	}

	auth := payload.Authorization
	chain, ok := s.registry.Get(requirements.Network)
	if !ok {
		return s.failure(requirements, fmt.Sprintf("unknown network: %s", requirements.Network), "")
	}

	wallet := s.sponsors.Find(ctx, requirements.Network, auth.From)
	if wallet == nil {
		return s.failure(requirements, ErrNoSponsorWallet, "")
	}

	signature, err := evm.HexToBytes(payload.Signature)
	if err != nil || len(signature) != 65 {
		return s.failure(requirements, evm.ReasonInvalidSignature, "")
	}
	r := signature[0:32]
	sComp := signature[32:64]
	v := signature[64]

	// ABI-encoded call data is computed for diagnostics only; the relay
	// consumes the structured call description below.
	if callData, err := s.encodeCallData(auth, signature); err == nil {
		s.log.Debug("relay settlement call data",
			zap.String("payer", auth.From),
			zap.String("callData", evm.BytesToHex(callData)))
	}

	call := ContractCall{
		ContractAddress: requirements.Asset,
		Method:          transferWithAuthorizationMethod,
		Params: []string{
			auth.From,
			auth.To,
			auth.Value,
			auth.ValidAfter,
			auth.ValidBefore,
			normalizeNonce(auth.Nonce),
			strconv.Itoa(int(v)),
			evm.BytesToHex(r),
			evm.BytesToHex(sComp),
		},
	}
	opts := ExecutionOptions{
		Type:    "EOA",
		From:    wallet.SponsorAddress,
		ChainID: chain.ChainID.Int64(),
	}

	s.log.Info("submitting relayed settlement",
		zap.String("network", requirements.Network),
		zap.String("payer", auth.From),
		zap.String("sponsor", wallet.SponsorAddress))

	resp, err := s.client.WriteContract(ctx, opts, call)
	if err != nil {
		return s.failure(requirements, err.Error(), "")
	}

	var txHash string
	switch resp.Kind {
	case ResponseImmediate:
		txHash = resp.TransactionHash
	case ResponseQueued:
		txHash, err = s.client.PollTransaction(ctx, resp.QueueID)
		if err != nil {
			return s.failure(requirements, err.Error(), "")
		}
	default:
		return s.failure(requirements,
			fmt.Sprintf("Unexpected response from Thirdweb API: %s", string(resp.Raw)), "")
	}

	result := sponsorpay.SettlementResult{
		Success:         true,
		TransactionHash: txHash,
		Payer:           auth.From,
		Network:         requirements.Network,
	}
	s.attachGasInfo(ctx, requirements.Network, &result)

	s.log.Info("relayed settlement confirmed",
		zap.String("network", requirements.Network),
		zap.String("payer", auth.From),
		zap.String("txHash", txHash))
	return result
}

// attachGasInfo fetches the receipt and fills in gas accounting. Failure to
// fetch is non-fatal; the fields are simply omitted.
func (s *Settler) attachGasInfo(ctx context.Context, network string, result *sponsorpay.SettlementResult) {
	if s.receipts == nil {
		return
	}
	receipt, err := s.receipts.TransactionReceipt(ctx, network, result.TransactionHash)
	if err != nil {
		s.log.Debug("receipt fetch for gas info failed",
			zap.String("txHash", result.TransactionHash),
			zap.Error(err))
		return
	}
	if receipt.EffectiveGasPrice == nil {
		return
	}

	gasUsed := new(big.Int).SetUint64(receipt.GasUsed)
	result.GasUsed = gasUsed.String()
	result.EffectiveGasPrice = receipt.EffectiveGasPrice.String()
	result.GasCostWei = new(big.Int).Mul(gasUsed, receipt.EffectiveGasPrice).String()
}

func (s *Settler) encodeCallData(auth evm.Authorization, signature []byte) ([]byte, error) {
	contractABI, err := abi.JSON(strings.NewReader(string(evm.TransferWithAuthorizationABI)))
	if err != nil {
		return nil, err
	}

	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid value: %s", auth.Value)
	}
	validAfter, ok := new(big.Int).SetString(auth.ValidAfter, 10)
	if !ok {
		return nil, fmt.Errorf("invalid validAfter: %s", auth.ValidAfter)
	}
	validBefore, ok := new(big.Int).SetString(auth.ValidBefore, 10)
	if !ok {
		return nil, fmt.Errorf("invalid validBefore: %s", auth.ValidBefore)
	}
	nonceBytes, err := evm.HexToBytes(auth.Nonce)
	if err != nil || len(nonceBytes) != 32 {
		return nil, fmt.Errorf("invalid nonce: %s", auth.Nonce)
	}

	var nonce, r, sComp [32]byte
	copy(nonce[:], nonceBytes)
	copy(r[:], signature[0:32])
	copy(sComp[:], signature[32:64])

	return contractABI.Pack(
		evm.FunctionTransferWithAuthorization,
		common.HexToAddress(auth.From),
		common.HexToAddress(auth.To),
		value,
		validAfter,
		validBefore,
		nonce,
		signature[64],
		r,
		sComp,
	)
}

func (s *Settler) failure(requirements sponsorpay.PaymentRequirements, reason, txHash string) sponsorpay.SettlementResult {
	s.log.Warn("relayed settlement failed",
		zap.String("network", requirements.Network),
		zap.String("error", reason))
	return sponsorpay.SettlementResult{
		Success:         false,
		Error:           reason,
		TransactionHash: txHash,
		Network:         requirements.Network,
	}
}

func normalizeNonce(nonce string) string {
	if strings.HasPrefix(nonce, "0x") {
		return nonce
	}
	return "0x" + nonce
}
