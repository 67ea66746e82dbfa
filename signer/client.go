// Package signer provides the facilitator's on-chain access: a
// private-key wallet client for direct settlement and a read-only
// multi-network chain reader for balance and receipt queries.
package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/x402-labs/sponsorpay/evm"
)

// receiptPollInterval is how often WaitForReceipt re-queries the RPC node.
const receiptPollInterval = time.Second

// Client executes contract calls on a single network with a locally held
// ECDSA key. It implements evm.WalletClient.
type Client struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	eth        *ethclient.Client
}

// NewClient creates a wallet client from a hex-encoded private key. The RPC
// endpoint is dialed immediately so misconfiguration fails at construction,
// not on the first settlement.
func NewClient(privateKeyHex, rpcURL string, chainID *big.Int) (*Client, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if chainID == nil {
		return nil, errors.New("chain id is required")
	}

	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rpcURL, err)
	}

	return &Client{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    chainID,
		eth:        eth,
	}, nil
}

// Address returns the wallet's Ethereum address.
func (c *Client) Address() string {
	return c.address.Hex()
}

// WriteContract signs and submits a state-changing contract call, returning
// the transaction hash without waiting for it to be mined.
func (c *Client) WriteContract(ctx context.Context, address string, abiJSON []byte, functionName string, args ...interface{}) (string, error) {
	contractABI, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return "", fmt.Errorf("failed to parse ABI: %w", err)
	}

	data, err := contractABI.Pack(functionName, args...)
	if err != nil {
		return "", fmt.Errorf("failed to pack method call: %w", err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	to := common.HexToAddress(address)
	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:     c.address,
		To:       &to,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return "", fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	return signedTx.Hash().Hex(), nil
}

// WaitForReceipt blocks until the transaction is mined or the context is
// canceled.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string) (*evm.Receipt, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return toReceipt(receipt), nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to get receipt: %w", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func toReceipt(r *types.Receipt) *evm.Receipt {
	receipt := &evm.Receipt{
		Status:            r.Status,
		TxHash:            r.TxHash.Hex(),
		GasUsed:           r.GasUsed,
		EffectiveGasPrice: r.EffectiveGasPrice,
	}
	if r.BlockNumber != nil {
		receipt.BlockNumber = r.BlockNumber.Uint64()
	}
	return receipt
}
