package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/x402-labs/sponsorpay"
)

// DirectSettler executes verified payments with locally held signing keys,
// one wallet client per network. Like the verifier it never returns an
// error from its public boundary: every failure path, including unexpected
// ones, is folded into SettlementResult.Error.
type DirectSettler struct {
	verifier *Verifier
	clients  map[string]WalletClient
	log      *zap.Logger
}

// NewDirectSettler creates a settler over per-network wallet clients.
// Networks without a client reject settlement at call time.
func NewDirectSettler(verifier *Verifier, clients map[string]WalletClient, log *zap.Logger) *DirectSettler {
	if log == nil {
		log = zap.NewNop()
	}
	return &DirectSettler{
		verifier: verifier,
		clients:  clients,
		log:      log,
	}
}

// Settle re-verifies the payload, submits transferWithAuthorization on the
// asset contract and blocks until the transaction is mined.
func (s *DirectSettler) Settle(ctx context.Context, payload *ExactPayload, requirements sponsorpay.PaymentRequirements) sponsorpay.SettlementResult {
	verifyResult := s.verifier.Verify(ctx, payload, requirements)
	if !verifyResult.IsValid {
		return sponsorpay.SettlementResult{
			Success: false,
			Error:   verifyResult.InvalidReason,
			Network: requirements.Network,
		}
	}

	client, ok := s.clients[requirements.Network]
	if !ok || client == nil {
		return sponsorpay.SettlementResult{
			Success: false,
			Error:   ErrWalletNotConfigured,
			Network: requirements.Network,
		}
	}

	auth := payload.Authorization
	signature, err := HexToBytes(payload.Signature)
	if err != nil || len(signature) != 65 {
		return sponsorpay.SettlementResult{
			Success: false,
			Error:   ReasonInvalidSignature,
			Network: requirements.Network,
		}
	}

	// Fixed-offset split: bytes 0-31 r, 32-63 s, 64 v.
	var r, sComp [32]byte
	copy(r[:], signature[0:32])
	copy(sComp[:], signature[32:64])
	v := signature[64]

	value, validAfter, validBefore, nonce, err := parseAuthorizationValues(auth)
	if err != nil {
		return sponsorpay.SettlementResult{
			Success: false,
			Error:   fmt.Sprintf("invalid authorization: %v", err),
			Network: requirements.Network,
		}
	}

	// abi.Pack requires common.Address for address parameters.
	txHash, err := client.WriteContract(
		ctx,
		requirements.Asset,
		TransferWithAuthorizationABI,
		FunctionTransferWithAuthorization,
		common.HexToAddress(auth.From),
		common.HexToAddress(auth.To),
		value,
		validAfter,
		validBefore,
		nonce,
		v,
		r,
		sComp,
	)
	if err != nil {
		s.log.Warn("transferWithAuthorization submission failed",
			zap.String("network", requirements.Network),
			zap.String("payer", auth.From),
			zap.Error(err))
		return sponsorpay.SettlementResult{
			Success: false,
			Error:   err.Error(),
			Network: requirements.Network,
		}
	}

	receipt, err := client.WaitForReceipt(ctx, txHash)
	if err != nil {
		return sponsorpay.SettlementResult{
			Success:         false,
			Error:           err.Error(),
			TransactionHash: txHash,
			Network:         requirements.Network,
		}
	}

	if receipt.Status != TxStatusSuccess {
		return sponsorpay.SettlementResult{
			Success:         false,
			Error:           ErrTransactionReverted,
			TransactionHash: txHash,
			Network:         requirements.Network,
		}
	}

	s.log.Info("settlement confirmed",
		zap.String("network", requirements.Network),
		zap.String("payer", auth.From),
		zap.String("txHash", txHash))

	return sponsorpay.SettlementResult{
		Success:         true,
		TransactionHash: txHash,
		Payer:           auth.From,
		Network:         requirements.Network,
	}
}
