package signer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/x402-labs/sponsorpay/chains"
	"github.com/x402-labs/sponsorpay/evm"
)

// ChainReader performs read-only RPC queries across all registered
// networks, dialing each network's endpoint lazily on first use. It
// implements evm.BalanceReader and evm.ReceiptFetcher.
type ChainReader struct {
	registry *chains.Registry

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

// NewChainReader creates a reader over the given registry.
func NewChainReader(registry *chains.Registry) *ChainReader {
	return &ChainReader{
		registry: registry,
		clients:  make(map[string]*ethclient.Client),
	}
}

func (r *ChainReader) client(network string) (*ethclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[network]; ok {
		return c, nil
	}
	chain, ok := r.registry.Get(network)
	if !ok {
		return nil, fmt.Errorf("unknown network: %s", network)
	}
	c, err := ethclient.Dial(chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", chain.RPCURL, err)
	}
	r.clients[network] = c
	return c, nil
}

// TokenBalance reads balanceOf(owner) on the token contract.
func (r *ChainReader) TokenBalance(ctx context.Context, network, tokenAddress, ownerAddress string) (*big.Int, error) {
	c, err := r.client(network)
	if err != nil {
		return nil, err
	}

	contractABI, err := abi.JSON(strings.NewReader(string(evm.ERC20BalanceOfABI)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	data, err := contractABI.Pack(evm.FunctionBalanceOf, common.HexToAddress(ownerAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	token := common.HexToAddress(tokenAddress)
	result, err := c.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}

	outputs, err := contractABI.Unpack(evm.FunctionBalanceOf, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf: %w", err)
	}
	balance, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, errors.New("unexpected balanceOf result type")
	}
	return balance, nil
}

// TransactionReceipt fetches the receipt of a mined transaction. Returns an
// error while the transaction is still pending.
func (r *ChainReader) TransactionReceipt(ctx context.Context, network, txHash string) (*evm.Receipt, error) {
	c, err := r.client(network)
	if err != nil {
		return nil, err
	}
	receipt, err := c.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return toReceipt(receipt), nil
}
