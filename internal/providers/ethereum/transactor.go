package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/adapter"
	"github.com/untron/untron-v3-engine/internal/logger"
)

// ErrTransactionReverted is returned when a sent transaction was mined with a failed status
var ErrTransactionReverted = errors.New("transaction reverted")

// TransactorConfig holds configuration for a Transactor
type TransactorConfig struct {
	ChainID             *big.Int
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
}

// Transactor signs transactions with one key and waits for them to be mined.
// Sends are serialized so nonces stay contiguous.
type Transactor struct {
	client adapter.EthClient
	key    *ecdsa.PrivateKey
	from   common.Address
	config TransactorConfig
	signer types.Signer
	mu     sync.Mutex
}

// NewTransactor creates a transactor from a hex private key (with or without 0x)
func NewTransactor(client adapter.EthClient, hexKey string, config TransactorConfig) (*Transactor, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if config.ChainID == nil || config.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id is required")
	}
	if config.ReceiptPollInterval <= 0 {
		config.ReceiptPollInterval = time.Second
	}
	if config.ReceiptTimeout <= 0 {
		config.ReceiptTimeout = 2 * time.Minute
	}

	return &Transactor{
		client: client,
		key:    key,
		from:   crypto.PubkeyToAddress(key.PublicKey),
		config: config,
		signer: types.LatestSignerForChainID(config.ChainID),
	}, nil
}

// Address returns the signing account
func (t *Transactor) Address() common.Address {
	return t.from
}

// Call executes a read-only call from the signing account
func (t *Transactor) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return t.client.CallContract(ctx, goethereum.CallMsg{From: t.from, To: &to, Data: data}, nil)
}

// Send signs and submits a dynamic fee transaction and waits for a successful receipt
func (t *Transactor) Send(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Receipt, error) {
	if value == nil {
		value = new(big.Int)
	}

	tx, err := t.signAndSend(ctx, to, value, data)
	if err != nil {
		return nil, err
	}

	logger.DebugCtx(ctx, "Transaction sent",
		logger.Hash("tx_hash", tx.Hash()),
		logger.Address("to", to),
		zap.Uint64("nonce", tx.Nonce()),
	)

	receipt, err := t.waitMined(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, tx.Hash().Hex())
	}
	return receipt, nil
}

func (t *Transactor) signAndSend(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nonce, err := t.client.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	tipCap, err := t.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas tip: %w", err)
	}
	head, err := t.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	// room for the base fee to double before inclusion
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(baseFee, big.NewInt(2)))

	gas, err := t.client.EstimateGas(ctx, goethereum.CallMsg{
		From:      t.from,
		To:        &to,
		GasFeeCap: feeCap,
		GasTipCap: tipCap,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx, err := types.SignNewTx(t.key, t.signer, &types.DynamicFeeTx{
		ChainID:   t.config.ChainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := t.client.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	return tx, nil
}

// waitMined polls for the receipt until it is available or the receipt timeout passes
func (t *Transactor) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.config.ReceiptTimeout)
	defer cancel()

	var receipt *types.Receipt
	operation := func() error {
		r, err := t.client.TransactionReceipt(ctx, hash)
		if err != nil {
			if errors.Is(err, goethereum.NotFound) {
				return err
			}
			return backoff.Permanent(err)
		}
		receipt = r
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(t.config.ReceiptPollInterval), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, fmt.Errorf("failed to get receipt of %s: %w", hash.Hex(), err)
	}
	return receipt, nil
}
