package evm

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// transferWithAuthorizationTypes is the EIP-712 type set for EIP-3009.
var transferWithAuthorizationTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"TransferWithAuthorization": {
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "validAfter", Type: "uint256"},
		{Name: "validBefore", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
	},
}

// HashAuthorization computes the EIP-712 digest of a TransferWithAuthorization
// message: keccak256("\x19\x01" ‖ domainSeparator ‖ structHash). The domain is
// {name: "USD Coin", version: "2", chainId, verifyingContract: asset}, matching
// what EIP-3009 stablecoin contracts verify on-chain.
func HashAuthorization(auth Authorization, chainID *big.Int, verifyingContract string) ([]byte, error) {
	value, validAfter, validBefore, nonce, err := parseAuthorizationValues(auth)
	if err != nil {
		return nil, err
	}

	typedData := apitypes.TypedData{
		Types:       transferWithAuthorizationTypes,
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              TokenName,
			Version:           TokenVersion,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: verifyingContract,
		},
		Message: map[string]interface{}{
			"from":        common.HexToAddress(auth.From).Hex(),
			"to":          common.HexToAddress(auth.To).Hex(),
			"value":       value,
			"validAfter":  validAfter,
			"validBefore": validBefore,
			"nonce":       nonce[:],
		},
	}

	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash struct: %w", err)
	}
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	raw := []byte{0x19, 0x01}
	raw = append(raw, domainSeparator...)
	raw = append(raw, structHash...)
	return crypto.Keccak256(raw), nil
}

// RecoverSigner recovers the address that produced signature over the
// authorization's EIP-712 digest. The signature is the 65-byte r ‖ s ‖ v
// form with v in either 0/1 or 27/28 convention.
func RecoverSigner(auth Authorization, signature []byte, chainID *big.Int, verifyingContract string) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(signature))
	}

	digest, err := HashAuthorization(auth, chainID, verifyingContract)
	if err != nil {
		return common.Address{}, err
	}

	// crypto.SigToPub expects recovery id 0/1
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// SignAuthorization signs the authorization's EIP-712 digest with an ECDSA
// private key and returns the 65-byte signature with v in 27/28 convention.
// This is the client half of the contract; the facilitator only verifies.
func SignAuthorization(privateKey *ecdsa.PrivateKey, auth Authorization, chainID *big.Int, verifyingContract string) ([]byte, error) {
	digest, err := HashAuthorization(auth, chainID, verifyingContract)
	if err != nil {
		return nil, err
	}
	signature, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	// recovery id 0/1 → 27/28
	signature[64] += 27
	return signature, nil
}
