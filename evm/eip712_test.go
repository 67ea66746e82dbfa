package evm

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func testAuthorization(from, to string) Authorization {
	return Authorization{
		From:        from,
		To:          to,
		Value:       "1000000",
		ValidAfter:  "1700000000",
		ValidBefore: "1700003600",
		Nonce:       "0x" + "11" + "22334455667788990011223344556677889900112233445566778899001122",
	}
}

func generateKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestSignAndRecoverRoundTrip(t *testing.T) {
	key, address := generateKey(t)
	auth := testAuthorization(address, "0x1111111111111111111111111111111111111111")
	chainID := big.NewInt(84532)
	asset := "0x036CbD53842c5426634e7929541eC2318f3dCF7e"

	signature, err := SignAuthorization(key, auth, chainID, asset)
	require.NoError(t, err)
	require.Len(t, signature, 65)

	recovered, err := RecoverSigner(auth, signature, chainID, asset)
	require.NoError(t, err)
	require.Equal(t, address, recovered.Hex())
}

func TestRecoverSignerMismatchedKey(t *testing.T) {
	key1, address1 := generateKey(t)
	_, address2 := generateKey(t)

	auth := testAuthorization(address2, "0x1111111111111111111111111111111111111111")
	chainID := big.NewInt(8453)
	asset := "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"

	signature, err := SignAuthorization(key1, auth, chainID, asset)
	require.NoError(t, err)

	recovered, err := RecoverSigner(auth, signature, chainID, asset)
	require.NoError(t, err)
	require.Equal(t, address1, recovered.Hex())
	require.NotEqual(t, address2, recovered.Hex())
}

func TestHashAuthorizationDeterministic(t *testing.T) {
	_, address := generateKey(t)
	auth := testAuthorization(address, "0x1111111111111111111111111111111111111111")
	chainID := big.NewInt(8453)
	asset := "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"

	h1, err := HashAuthorization(auth, chainID, asset)
	require.NoError(t, err)
	h2, err := HashAuthorization(auth, chainID, asset)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 32)

	// Any field change moves the digest.
	auth.Value = "1000001"
	h3, err := HashAuthorization(auth, chainID, asset)
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}

func TestHashAuthorizationRejectsBadInput(t *testing.T) {
	_, address := generateKey(t)
	chainID := big.NewInt(8453)
	asset := "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"

	tests := []struct {
		name   string
		mutate func(*Authorization)
	}{
		{"non-numeric value", func(a *Authorization) { a.Value = "one million" }},
		{"short nonce", func(a *Authorization) { a.Nonce = "0x1234" }},
		{"non-hex nonce", func(a *Authorization) { a.Nonce = "zz" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := testAuthorization(address, "0x1111111111111111111111111111111111111111")
			tt.mutate(&auth)
			_, err := HashAuthorization(auth, chainID, asset)
			require.Error(t, err)
		})
	}
}

func TestRecoverSignerRejectsShortSignature(t *testing.T) {
	_, address := generateKey(t)
	auth := testAuthorization(address, "0x1111111111111111111111111111111111111111")

	_, err := RecoverSigner(auth, []byte{0x01, 0x02}, big.NewInt(8453), "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	require.Error(t, err)
}
