// Package rpc talks to a deployed credential ledger node over JSON-RPC 2.0.
// Writes are signed by the node for the configured account; Confirm polls
// the transaction receipt until it is final.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"credledger/internal/ledger"
)

const (
	// codeExecutionReverted is the node's error code for a reverted call.
	codeExecutionReverted = 3
	maxResponseSize       = 4 << 20
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	URL            string
	Account        ledger.Address
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Timeout        time.Duration
	HTTPClient     HTTPDoer
	Logger         *slog.Logger
}

// Client implements ledger.Client against a JSON-RPC node.
type Client struct {
	url            string
	account        ledger.Address
	confirmTimeout time.Duration
	pollInterval   time.Duration
	client         HTTPDoer
	logger         *slog.Logger
	nextID         atomic.Uint64
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 30 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		url:            cfg.URL,
		account:        cfg.Account,
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		client:         client,
		logger:         logger,
	}
}

func (c *Client) Account() ledger.Address { return c.account }

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *callError      `json:"error"`
}

// callError is an error object returned by the node.
type callError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    *revertData `json:"data,omitempty"`
}

func (e *callError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type revertData struct {
	Reason       string `json:"reason"`
	CredentialID string `json:"credentialId,omitempty"`
}

// call performs one JSON-RPC round trip. It returns *callError when the node
// answered with an error object and a plain error for transport failures.
func (c *Client) call(ctx context.Context, method string, out any, params ...any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// writeError classifies a failed write submission.
func writeError(err error, fallbackID ledger.CredentialID) error {
	if ctxErr := contextError(err); ctxErr != nil {
		return ctxErr
	}
	var ce *callError
	if errors.As(err, &ce) && ce.Code == codeExecutionReverted && ce.Data != nil {
		return revertError(*ce.Data, fallbackID)
	}
	return fmt.Errorf("%w: %w", ledger.ErrSubmitFailed, err)
}

// readError classifies a failed read.
func readError(err error) error {
	if ctxErr := contextError(err); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %w", ledger.ErrUnavailable, err)
}

func contextError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	}
	return nil
}

func revertError(data revertData, fallbackID ledger.CredentialID) error {
	if data.Reason == ledger.RevertAlreadyIssued {
		id := fallbackID
		if parsed, err := ledger.ParseCredentialID(data.CredentialID); err == nil {
			id = parsed
		}
		return &ledger.AlreadyIssuedError{ID: id}
	}
	return &ledger.RevertError{Reason: data.Reason}
}

type registerHolderParams struct {
	From           ledger.Address `json:"from"`
	Holder         ledger.Address `json:"holder"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	ContentAddress string         `json:"contentAddress"`
}

func (c *Client) RegisterHolder(ctx context.Context, req ledger.RegisterHolderRequest) (ledger.TxHandle, error) {
	var txHash string
	err := c.call(ctx, "credledger_registerHolder", &txHash, registerHolderParams{
		From:           c.account,
		Holder:         req.Holder,
		Name:           req.Name,
		Email:          req.Email,
		ContentAddress: req.ContentAddress,
	})
	if err != nil {
		return ledger.TxHandle{}, writeError(err, ledger.CredentialID{})
	}
	return c.handle(ctx, ledger.TxHandle{
		TxHash:         txHash,
		Kind:           ledger.TxRegisterHolder,
		Holder:         req.Holder,
		ContentAddress: req.ContentAddress,
	}), nil
}

type issueParams struct {
	From           ledger.Address `json:"from"`
	Holder         ledger.Address `json:"holder"`
	Type           string         `json:"type"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Expiry         int64          `json:"expiry"`
	ContentAddress string         `json:"contentAddress"`
}

type issueResult struct {
	TxHash       string              `json:"txHash"`
	CredentialID ledger.CredentialID `json:"credentialId"`
}

func (c *Client) IssueCredential(ctx context.Context, req ledger.IssueRequest) (ledger.TxHandle, error) {
	derived := ledger.DeriveCredentialID(c.account, req)

	var res issueResult
	err := c.call(ctx, "credledger_issueCredential", &res, issueParams{
		From:           c.account,
		Holder:         req.Holder,
		Type:           req.Type,
		Name:           req.Name,
		Description:    req.Description,
		Expiry:         req.Expiry.Unix(),
		ContentAddress: req.ContentAddress,
	})
	if err != nil {
		return ledger.TxHandle{}, writeError(err, derived)
	}
	if res.CredentialID.IsZero() {
		res.CredentialID = derived
	}
	return c.handle(ctx, ledger.TxHandle{
		TxHash:         res.TxHash,
		Kind:           ledger.TxIssueCredential,
		CredentialID:   res.CredentialID,
		Holder:         req.Holder,
		ContentAddress: req.ContentAddress,
	}), nil
}

type authorizeParams struct {
	From   ledger.Address `json:"from"`
	Issuer ledger.Address `json:"issuer"`
}

func (c *Client) AuthorizeIssuer(ctx context.Context, issuer ledger.Address) (ledger.TxHandle, error) {
	var txHash string
	err := c.call(ctx, "credledger_authorizeIssuer", &txHash, authorizeParams{From: c.account, Issuer: issuer})
	if err != nil {
		return ledger.TxHandle{}, writeError(err, ledger.CredentialID{})
	}
	return c.handle(ctx, ledger.TxHandle{TxHash: txHash, Kind: ledger.TxAuthorizeIssuer, Holder: issuer}), nil
}

func (c *Client) handle(ctx context.Context, h ledger.TxHandle) ledger.TxHandle {
	h.SubmittedAt = time.Now()
	c.logger.DebugContext(ctx, "transaction submitted",
		"tx_hash", h.TxHash,
		"kind", string(h.Kind),
	)
	return h
}

const (
	statusSuccess  = "success"
	statusReverted = "reverted"
)

type receiptResult struct {
	TxHash         string              `json:"txHash"`
	Kind           ledger.TxKind       `json:"kind"`
	Status         string              `json:"status"`
	BlockNumber    uint64              `json:"blockNumber"`
	BlockTime      int64               `json:"blockTime"`
	CredentialID   ledger.CredentialID `json:"credentialId"`
	Holder         ledger.Address      `json:"holder"`
	ContentAddress string              `json:"contentAddress"`
	Revert         *revertData         `json:"revert,omitempty"`
}

func (c *Client) Confirm(ctx context.Context, h ledger.TxHandle) (ledger.Confirmation, error) {
	timer := time.NewTimer(c.confirmTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		conf, done, err := c.receipt(ctx, h)
		if done {
			return conf, err
		}
		if err != nil {
			if ctxErr := contextError(err); ctxErr != nil {
				return ledger.Confirmation{}, ctxErr
			}
			c.logger.WarnContext(ctx, "receipt poll failed",
				"tx_hash", h.TxHash,
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ledger.Confirmation{}, ctx.Err()
		case <-timer.C:
			return ledger.Confirmation{}, ledger.ErrTxTimeout
		case <-ticker.C:
		}
	}
}

// receipt fetches the receipt once. done reports whether the transaction is
// final, in which case err is its outcome rather than a poll failure.
func (c *Client) receipt(ctx context.Context, h ledger.TxHandle) (ledger.Confirmation, bool, error) {
	var res *receiptResult
	if err := c.call(ctx, "credledger_getTransactionReceipt", &res, h.TxHash); err != nil {
		return ledger.Confirmation{}, false, err
	}
	if res == nil {
		known, err := c.known(ctx, h.TxHash)
		if err != nil {
			return ledger.Confirmation{}, false, err
		}
		if !known {
			return ledger.Confirmation{}, true, ledger.ErrNotFound
		}
		return ledger.Confirmation{}, false, nil
	}

	if res.Status == statusReverted {
		data := revertData{}
		if res.Revert != nil {
			data = *res.Revert
		}
		return ledger.Confirmation{}, true, revertError(data, h.CredentialID)
	}
	if res.Status != statusSuccess {
		return ledger.Confirmation{}, false, fmt.Errorf("unknown receipt status %q", res.Status)
	}

	conf := ledger.Confirmation{
		TxHash:         h.TxHash,
		Kind:           res.Kind,
		CredentialID:   res.CredentialID,
		Holder:         res.Holder,
		ContentAddress: res.ContentAddress,
		BlockNumber:    res.BlockNumber,
		BlockTime:      time.Unix(res.BlockTime, 0).UTC(),
	}
	if conf.Kind == "" {
		conf.Kind = h.Kind
	}
	if conf.CredentialID.IsZero() {
		conf.CredentialID = h.CredentialID
	}
	if conf.ContentAddress == "" {
		conf.ContentAddress = h.ContentAddress
	}
	return conf, true, nil
}

// known reports whether the node has seen the transaction at all. A missing
// receipt alone cannot tell an unknown hash from one still in the mempool.
func (c *Client) known(ctx context.Context, txHash string) (bool, error) {
	var tx *struct {
		TxHash string `json:"txHash"`
	}
	if err := c.call(ctx, "credledger_getTransaction", &tx, txHash); err != nil {
		return false, err
	}
	return tx != nil, nil
}

type credentialResult struct {
	ID             ledger.CredentialID `json:"id"`
	Issuer         ledger.Address      `json:"issuer"`
	Holder         ledger.Address      `json:"holder"`
	Type           string              `json:"type"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	IssuanceTime   int64               `json:"issuanceTime"`
	ExpiryTime     int64               `json:"expiryTime"`
	ContentAddress string              `json:"contentAddress"`
	Revoked        bool                `json:"revoked"`
}

func (c *Client) GetCredential(ctx context.Context, id ledger.CredentialID) (ledger.CredentialRecord, error) {
	var res *credentialResult
	if err := c.call(ctx, "credledger_getCredential", &res, id); err != nil {
		return ledger.CredentialRecord{}, readError(err)
	}
	if res == nil {
		return ledger.CredentialRecord{}, ledger.ErrNotFound
	}
	return ledger.CredentialRecord{
		ID:             res.ID,
		Issuer:         res.Issuer,
		Holder:         res.Holder,
		Type:           res.Type,
		Name:           res.Name,
		Description:    res.Description,
		IssuanceTime:   time.Unix(res.IssuanceTime, 0).UTC(),
		ExpiryTime:     time.Unix(res.ExpiryTime, 0).UTC(),
		ContentAddress: res.ContentAddress,
		Revoked:        res.Revoked,
	}, nil
}

func (c *Client) GetHolderCredentials(ctx context.Context, holder ledger.Address) ([]ledger.CredentialID, error) {
	var ids []ledger.CredentialID
	if err := c.call(ctx, "credledger_getHolderCredentials", &ids, holder); err != nil {
		return nil, readError(err)
	}
	return ids, nil
}

type holderResult struct {
	Address         ledger.Address `json:"address"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	ContentAddress  string         `json:"contentAddress"`
	MemberSince     int64          `json:"memberSince"`
	CredentialCount uint64         `json:"credentialCount"`
}

func (c *Client) GetHolder(ctx context.Context, holder ledger.Address) (ledger.Holder, error) {
	var res *holderResult
	if err := c.call(ctx, "credledger_getHolder", &res, holder); err != nil {
		return ledger.Holder{}, readError(err)
	}
	if res == nil {
		return ledger.Holder{}, ledger.ErrNotFound
	}
	return ledger.Holder{
		Address:         res.Address,
		Name:            res.Name,
		Email:           res.Email,
		ContentAddress:  res.ContentAddress,
		MemberSince:     time.Unix(res.MemberSince, 0).UTC(),
		CredentialCount: res.CredentialCount,
	}, nil
}

type verifyResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

func (c *Client) VerifyCredential(ctx context.Context, id ledger.CredentialID) (bool, string, error) {
	var res verifyResult
	if err := c.call(ctx, "credledger_verifyCredential", &res, id); err != nil {
		return false, "", readError(err)
	}
	return res.Valid, res.Reason, nil
}

// Ping asks the node for its latest block number. It backs the readiness
// probe.
func (c *Client) Ping(ctx context.Context) error {
	var block uint64
	if err := c.call(ctx, "credledger_blockNumber", &block); err != nil {
		return fmt.Errorf("ledger node unreachable: %w", err)
	}
	return nil
}

var _ ledger.Client = (*Client)(nil)
