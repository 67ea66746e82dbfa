package relay

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/x402-labs/sponsorpay"
	"github.com/x402-labs/sponsorpay/chains"
	"github.com/x402-labs/sponsorpay/evm"
	"github.com/x402-labs/sponsorpay/sponsor"
)

const (
	settlerTestNetwork = "base-sepolia"
	settlerTestPayTo   = "0xBBB0000000000000000000000000000000000bbb"
	testSponsorAddress = "0xDDD0000000000000000000000000000000000ddd"
)

type stubBalanceReader struct {
	balance *big.Int
}

func (s *stubBalanceReader) TokenBalance(_ context.Context, _, _, _ string) (*big.Int, error) {
	return s.balance, nil
}

type stubReceiptFetcher struct {
	receipt *evm.Receipt
	err     error
}

func (s *stubReceiptFetcher) TransactionReceipt(_ context.Context, _, _ string) (*evm.Receipt, error) {
	return s.receipt, s.err
}

type settlerFixture struct {
	registry *chains.Registry
	verifier *evm.Verifier
	store    *sponsor.MemoryStore
	sponsors *sponsor.Resolver
	key      *ecdsa.PrivateKey
	payer    string
	asset    string
	chainID  *big.Int
}

func newSettlerFixture(t *testing.T) *settlerFixture {
	t.Helper()

	registry := chains.NewRegistry()
	chain, ok := registry.Get(settlerTestNetwork)
	require.True(t, ok)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	payer := crypto.PubkeyToAddress(key.PublicKey).Hex()

	store := sponsor.NewMemoryStore()
	store.PutWallet(sponsor.SponsorWallet{
		ID:                "wallet-1",
		UserWalletAddress: payer,
		Network:           settlerTestNetwork,
		SponsorAddress:    testSponsorAddress,
	})

	return &settlerFixture{
		registry: registry,
		verifier: evm.NewVerifier(registry, &stubBalanceReader{balance: big.NewInt(1_000_000_000)}, nil),
		store:    store,
		sponsors: sponsor.NewResolver(store, nil),
		key:      key,
		payer:    payer,
		asset:    chain.USDCAddress,
		chainID:  chain.ChainID,
	}
}

func (f *settlerFixture) newSettler(t *testing.T, baseURL string, receipts evm.ReceiptFetcher) *Settler {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseURL:         baseURL,
		APIKey:          "test-secret",
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 30,
	})
	require.NoError(t, err)
	return NewSettler(f.verifier, client, f.sponsors, f.registry, receipts, nil)
}

func (f *settlerFixture) payload(t *testing.T) *evm.ExactPayload {
	t.Helper()
	now := time.Now().Unix()
	auth := evm.Authorization{
		From:        f.payer,
		To:          settlerTestPayTo,
		Value:       "1000000",
		ValidAfter:  strconv.FormatInt(now-60, 10),
		ValidBefore: strconv.FormatInt(now+3600, 10),
		Nonce:       "0x0102030405060708091011121314151617181920212223242526272829303132",
	}
	signature, err := evm.SignAuthorization(f.key, auth, f.chainID, f.asset)
	require.NoError(t, err)
	return &evm.ExactPayload{
		Signature:     evm.BytesToHex(signature),
		Authorization: auth,
	}
}

func (f *settlerFixture) requirements() sponsorpay.PaymentRequirements {
	return sponsorpay.PaymentRequirements{
		Scheme:            sponsorpay.SchemeExact,
		Network:           settlerTestNetwork,
		Asset:             f.asset,
		PayTo:             settlerTestPayTo,
		MaxAmountRequired: "2000000",
	}
}

func TestRelaySettleQueuedThenConfirmed(t *testing.T) {
	f := newSettlerFixture(t)

	var writeBody map[string]interface{}
	var statusCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/write/contract":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&writeBody))
			w.Write([]byte(`{"transactions":[{"id":"tx_123"}]}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/transactions/tx_123":
			if atomic.AddInt32(&statusCalls, 1) == 1 {
				w.Write([]byte(`{"status":"pending"}`))
				return
			}
			w.Write([]byte(`{"transactionHash":"0xdead000000000000000000000000000000000000000000000000000000000000","status":"confirmed"}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	settler := f.newSettler(t, server.URL, nil)
	result := settler.Settle(context.Background(), f.payload(t), f.requirements())

	require.True(t, result.Success)
	require.Equal(t, "0xdead000000000000000000000000000000000000000000000000000000000000", result.TransactionHash)
	require.Equal(t, f.payer, result.Payer)
	require.Equal(t, settlerTestNetwork, result.Network)
	require.Equal(t, int32(2), atomic.LoadInt32(&statusCalls))

	execOpts := writeBody["executionOptions"].(map[string]interface{})
	require.Equal(t, "EOA", execOpts["type"])
	require.Equal(t, testSponsorAddress, execOpts["from"])
	require.Equal(t, float64(f.chainID.Int64()), execOpts["chainId"])

	calls := writeBody["params"].([]interface{})
	require.Len(t, calls, 1)
	call := calls[0].(map[string]interface{})
	require.Equal(t, f.asset, call["contractAddress"])
	require.Equal(t, transferWithAuthorizationMethod, call["method"])
	params := call["params"].([]interface{})
	require.Len(t, params, 9)
	require.Equal(t, f.payer, params[0])
	require.Equal(t, settlerTestPayTo, params[1])
	require.Equal(t, "1000000", params[2])
}

func TestRelaySettleImmediateHash(t *testing.T) {
	f := newSettlerFixture(t)

	var statusCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&statusCalls, 1)
			return
		}
		w.Write([]byte(`{"transactionHash":"0xfeed"}`))
	}))
	defer server.Close()

	settler := f.newSettler(t, server.URL, nil)
	result := settler.Settle(context.Background(), f.payload(t), f.requirements())

	require.True(t, result.Success)
	require.Equal(t, "0xfeed", result.TransactionHash)
	require.Equal(t, int32(0), atomic.LoadInt32(&statusCalls))
}

func TestRelaySettleNoSponsorWallet(t *testing.T) {
	f := newSettlerFixture(t)
	f.sponsors = sponsor.NewResolver(sponsor.NewMemoryStore(), nil)

	var writeCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&writeCalls, 1)
	}))
	defer server.Close()

	settler := f.newSettler(t, server.URL, nil)
	result := settler.Settle(context.Background(), f.payload(t), f.requirements())

	require.False(t, result.Success)
	require.Equal(t, ErrNoSponsorWallet, result.Error)
	require.Equal(t, int32(0), atomic.LoadInt32(&writeCalls))
}

func TestRelaySettleUnexpectedResponse(t *testing.T) {
	f := newSettlerFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	settler := f.newSettler(t, server.URL, nil)
	result := settler.Settle(context.Background(), f.payload(t), f.requirements())

	require.False(t, result.Success)
	require.Equal(t, `Unexpected response from Thirdweb API: {"ok":true}`, result.Error)
}

func TestRelaySettleInvalidPayloadShortCircuits(t *testing.T) {
	f := newSettlerFixture(t)

	var writeCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&writeCalls, 1)
	}))
	defer server.Close()

	settler := f.newSettler(t, server.URL, nil)
	payload := f.payload(t)
	payload.Authorization.Value = "9000000" // exceeds maxAmountRequired

	result := settler.Settle(context.Background(), payload, f.requirements())
	require.False(t, result.Success)
	require.Equal(t, evm.ReasonFieldsInvalid, result.Error)
	require.Equal(t, int32(0), atomic.LoadInt32(&writeCalls))
}

func TestRelaySettlePollingFailure(t *testing.T) {
	f := newSettlerFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"queueId":"q_1"}`))
			return
		}
		w.Write([]byte(`{"status":"failed","revertReason":"ERC20: authorization is used"}`))
	}))
	defer server.Close()

	settler := f.newSettler(t, server.URL, nil)
	result := settler.Settle(context.Background(), f.payload(t), f.requirements())

	require.False(t, result.Success)
	require.Equal(t, "ERC20: authorization is used", result.Error)
}

func TestRelaySettlePollingTimeout(t *testing.T) {
	f := newSettlerFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"queueId":"q_2"}`))
			return
		}
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer server.Close()

	settler := f.newSettler(t, server.URL, nil)
	result := settler.Settle(context.Background(), f.payload(t), f.requirements())

	require.False(t, result.Success)
	require.Equal(t, "Transaction polling timeout", result.Error)
}

func TestRelaySettleAttachesGasInfo(t *testing.T) {
	f := newSettlerFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transactionHash":"0xfeed"}`))
	}))
	defer server.Close()

	receipts := &stubReceiptFetcher{receipt: &evm.Receipt{
		Status:            evm.TxStatusSuccess,
		TxHash:            "0xfeed",
		GasUsed:           21_000,
		EffectiveGasPrice: big.NewInt(2_000_000_000),
	}}
	settler := f.newSettler(t, server.URL, receipts)
	result := settler.Settle(context.Background(), f.payload(t), f.requirements())

	require.True(t, result.Success)
	require.Equal(t, "21000", result.GasUsed)
	require.Equal(t, "2000000000", result.EffectiveGasPrice)
	require.Equal(t, "42000000000000", result.GasCostWei)
}
