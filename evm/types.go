// Package evm implements verification and settlement of EIP-3009
// transferWithAuthorization payments on EVM networks.
package evm

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Authorization is the EIP-3009 TransferWithAuthorization record signed by
// the payer. Value, ValidAfter and ValidBefore are decimal integer strings;
// Nonce is a 32-byte hex value unique per authorization.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// ExactPayload is a client-submitted payment instance: the authorization
// plus its 65-byte EIP-712 signature (r ‖ s ‖ v, hex encoded). From must
// equal the signature's recovered signer for the payload to be valid.
type ExactPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// BalanceReader reads an ERC-20 balance on a given network. Implemented by
// signer.ChainReader for production and by test fakes.
type BalanceReader interface {
	TokenBalance(ctx context.Context, network, tokenAddress, ownerAddress string) (*big.Int, error)
}

// Receipt is the subset of a mined transaction receipt this package needs.
type Receipt struct {
	Status            uint64
	TxHash            string
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// ReceiptFetcher fetches the receipt of a mined transaction. Used for
// best-effort gas accounting after relayed settlement.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, network, txHash string) (*Receipt, error)
}

// WalletClient executes state-changing contract calls with a locally held
// signing key on one network. Implemented by signer.Client. Reads go
// through BalanceReader instead.
type WalletClient interface {
	// WriteContract submits a state-changing call and returns the tx hash.
	WriteContract(ctx context.Context, address string, abiJSON []byte, functionName string, args ...interface{}) (string, error)

	// WaitForReceipt blocks until the transaction is mined.
	WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error)
}

// HexToBytes decodes a hex string, with or without the 0x prefix.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string: %w", err)
	}
	return b, nil
}

// BytesToHex encodes bytes as a 0x-prefixed hex string.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// parseAuthorizationValues parses the decimal string fields of an
// authorization into big integers and the nonce into its 32 raw bytes.
func parseAuthorizationValues(auth Authorization) (value, validAfter, validBefore *big.Int, nonce [32]byte, err error) {
	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return nil, nil, nil, nonce, fmt.Errorf("invalid authorization value: %s", auth.Value)
	}
	validAfter, ok = new(big.Int).SetString(auth.ValidAfter, 10)
	if !ok {
		return nil, nil, nil, nonce, fmt.Errorf("invalid validAfter: %s", auth.ValidAfter)
	}
	validBefore, ok = new(big.Int).SetString(auth.ValidBefore, 10)
	if !ok {
		return nil, nil, nil, nonce, fmt.Errorf("invalid validBefore: %s", auth.ValidBefore)
	}
	nonceBytes, err := HexToBytes(auth.Nonce)
	if err != nil {
		return nil, nil, nil, nonce, fmt.Errorf("invalid nonce: %w", err)
	}
	if len(nonceBytes) != 32 {
		return nil, nil, nil, nonce, fmt.Errorf("nonce must be 32 bytes, got %d", len(nonceBytes))
	}
	copy(nonce[:], nonceBytes)
	return value, validAfter, validBefore, nonce, nil
}
