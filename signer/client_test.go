package signer

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestNewClientRejectsBadKey(t *testing.T) {
	_, err := NewClient("not-a-key", "http://localhost:8545", big.NewInt(1))
	require.Error(t, err)
}

func TestNewClientRequiresChainID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = NewClient(hex.EncodeToString(crypto.FromECDSA(key)), "http://localhost:8545", nil)
	require.Error(t, err)
}

func TestNewClientDerivesAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hex.EncodeToString(crypto.FromECDSA(key))

	client, err := NewClient(keyHex, "http://localhost:8545", big.NewInt(84532))
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), client.Address())

	// 0x prefix is accepted too
	prefixed, err := NewClient("0x"+keyHex, "http://localhost:8545", big.NewInt(84532))
	require.NoError(t, err)
	require.Equal(t, client.Address(), prefixed.Address())
}
