package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"ammclient/internal/ledger"
	"ammclient/internal/strkey"
)

// Client wraps the ledger node's JSON-RPC surface.
type Client struct {
	rpcClient *rpc.Client
	logger    *zap.Logger
}

// NewClient creates a new ledger client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	return &Client{
		rpcClient: rpcClient,
		logger:    logger,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

type latestLedgerResponse struct {
	Sequence uint32 `json:"sequence"`
}

// LatestLedger returns the sequence of the most recent closed ledger.
func (c *Client) LatestLedger(ctx context.Context) (uint32, error) {
	var resp latestLedgerResponse
	if err := c.rpcClient.CallContext(ctx, &resp, "getLatestLedger"); err != nil {
		return 0, fmt.Errorf("get latest ledger: %w", err)
	}
	return resp.Sequence, nil
}

type ledgerEntriesRequest struct {
	Keys []string `json:"keys"`
}

type ledgerEntriesResponse struct {
	Entries      []ledger.LedgerEntry `json:"entries"`
	LatestLedger uint32               `json:"latestLedger"`
}

// GetLedgerEntries reads raw ledger entries. Missing keys are absent from the
// result.
func (c *Client) GetLedgerEntries(ctx context.Context, keys ...string) ([]ledger.LedgerEntry, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var resp ledgerEntriesResponse
	if err := c.rpcClient.CallContext(ctx, &resp, "getLedgerEntries", ledgerEntriesRequest{Keys: keys}); err != nil {
		return nil, fmt.Errorf("get ledger entries: %w", err)
	}
	return resp.Entries, nil
}

type accountEntry struct {
	Sequence int64 `json:"sequence,string"`
}

// GetAccount returns the current sequence of a source account.
func (c *Client) GetAccount(ctx context.Context, id strkey.Address) (ledger.Account, error) {
	if !id.IsAccount() {
		return ledger.Account{}, fmt.Errorf("get account: %q is not an account", id)
	}
	entries, err := c.GetLedgerEntries(ctx, ledger.AccountKey(id))
	if err != nil {
		return ledger.Account{}, err
	}
	if len(entries) == 0 {
		return ledger.Account{}, fmt.Errorf("get account %s: not found", id)
	}
	var entry accountEntry
	if err := json.Unmarshal(entries[0].Data, &entry); err != nil {
		return ledger.Account{}, fmt.Errorf("decode account %s: %w", id, err)
	}
	return ledger.Account{ID: id, Sequence: entry.Sequence}, nil
}

type transactionRequest struct {
	Transaction interface{} `json:"transaction"`
}

// SimulateTransaction dry-runs tx. Contract failures come back in the
// result's Error field, not as a Go error.
func (c *Client) SimulateTransaction(ctx context.Context, tx ledger.Transaction) (ledger.SimulationResult, error) {
	var result ledger.SimulationResult
	if err := c.rpcClient.CallContext(ctx, &result, "simulateTransaction", transactionRequest{Transaction: tx}); err != nil {
		return ledger.SimulationResult{}, fmt.Errorf("simulate transaction: %w", err)
	}
	c.logger.Debug("simulated",
		zap.Bool("success", result.Success),
		zap.Bool("restore", result.RestorePreamble != nil),
		zap.Int64("min_resource_fee", result.MinResourceFee),
	)
	return result, nil
}

// SendTransaction submits a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx ledger.SignedTransaction) (ledger.SendResult, error) {
	var result ledger.SendResult
	if err := c.rpcClient.CallContext(ctx, &result, "sendTransaction", transactionRequest{Transaction: tx}); err != nil {
		return ledger.SendResult{}, fmt.Errorf("send transaction: %w", err)
	}
	if result.Hash == (common.Hash{}) {
		result.Hash = tx.Hash
	}
	return result, nil
}

type hashRequest struct {
	Hash common.Hash `json:"hash"`
}

// GetTransaction reads the status of a submitted transaction.
func (c *Client) GetTransaction(ctx context.Context, hash common.Hash) (ledger.TxResult, error) {
	var result ledger.TxResult
	if err := c.rpcClient.CallContext(ctx, &result, "getTransaction", hashRequest{Hash: hash}); err != nil {
		return ledger.TxResult{}, fmt.Errorf("get transaction %s: %w", hash.Hex(), err)
	}
	result.Hash = hash
	return result, nil
}
