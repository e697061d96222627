// Package memory simulates the credential ledger in process: writes are
// pending until the block they land in is produced, then applied in
// submission order. Blocks are produced lazily from the clock, so no
// background goroutine is needed.
package memory

import (
	"context"
	"encoding/hex"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"credledger/internal/ledger"
)

// Ledger is an in-process ledger.Client.
type Ledger struct {
	account        ledger.Address
	genesis        time.Time
	blockInterval  time.Duration
	confirmTimeout time.Duration
	now            func() time.Time
	sleep          func(ctx context.Context, d time.Duration) error
	logger         *slog.Logger

	mu          sync.Mutex
	issuers     map[ledger.Address]bool
	holders     map[ledger.Address]*ledger.Holder
	credentials map[ledger.CredentialID]*ledger.CredentialRecord
	byHolder    map[ledger.Address][]ledger.CredentialID
	pending     []*pendingTx
	receipts    map[string]receipt
}

type pendingTx struct {
	handle   ledger.TxHandle
	block    uint64
	finalAt  time.Time
	register *ledger.RegisterHolderRequest
	issue    *ledger.IssueRequest
	issuer   ledger.Address
}

type receipt struct {
	conf ledger.Confirmation
	err  error
}

type Option func(*Ledger)

func WithBlockInterval(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.blockInterval = d
		}
	}
}

func WithConfirmTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.confirmTimeout = d
		}
	}
}

// WithClock replaces time.Now and the confirmation wait. sleep must return
// ctx.Err() when ctx is done first.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates a ledger owned by account. The owner may authorize issuers but
// is not itself authorized to issue until it does so.
func New(account ledger.Address, opts ...Option) *Ledger {
	l := &Ledger{
		account:        account,
		blockInterval:  2 * time.Second,
		confirmTimeout: 30 * time.Second,
		now:            time.Now,
		sleep:          sleepContext,
		logger:         slog.New(slog.DiscardHandler),
		issuers:        make(map[ledger.Address]bool),
		holders:        make(map[ledger.Address]*ledger.Holder),
		credentials:    make(map[ledger.CredentialID]*ledger.CredentialRecord),
		byHolder:       make(map[ledger.Address][]ledger.CredentialID),
		receipts:       make(map[string]receipt),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.genesis = l.now()
	return l
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Ledger) Account() ledger.Address { return l.account }

// blockAt returns the block being built at t and the time it becomes final.
func (l *Ledger) blockAt(t time.Time) (uint64, time.Time) {
	n := uint64(t.Sub(l.genesis)/l.blockInterval) + 1
	return n, l.genesis.Add(time.Duration(n) * l.blockInterval)
}

func (l *Ledger) RegisterHolder(ctx context.Context, req ledger.RegisterHolderRequest) (ledger.TxHandle, error) {
	if err := ctx.Err(); err != nil {
		return ledger.TxHandle{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.mine(now)

	if _, exists := l.holders[req.Holder]; exists {
		return ledger.TxHandle{}, &ledger.RevertError{Reason: ledger.RevertHolderRegistered}
	}

	r := req
	return l.submit(ctx, now, &pendingTx{
		handle: ledger.TxHandle{
			Kind:           ledger.TxRegisterHolder,
			Holder:         req.Holder,
			ContentAddress: req.ContentAddress,
		},
		register: &r,
	}), nil
}

func (l *Ledger) IssueCredential(ctx context.Context, req ledger.IssueRequest) (ledger.TxHandle, error) {
	if err := ctx.Err(); err != nil {
		return ledger.TxHandle{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.mine(now)

	id := ledger.DeriveCredentialID(l.account, req)
	if err := l.checkIssue(l.account, id, req, now); err != nil {
		return ledger.TxHandle{}, err
	}

	r := req
	return l.submit(ctx, now, &pendingTx{
		handle: ledger.TxHandle{
			Kind:           ledger.TxIssueCredential,
			CredentialID:   id,
			Holder:         req.Holder,
			ContentAddress: req.ContentAddress,
		},
		issue:  &r,
		issuer: l.account,
	}), nil
}

func (l *Ledger) AuthorizeIssuer(ctx context.Context, issuer ledger.Address) (ledger.TxHandle, error) {
	if err := ctx.Err(); err != nil {
		return ledger.TxHandle{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.mine(now)

	return l.submit(ctx, now, &pendingTx{
		handle: ledger.TxHandle{Kind: ledger.TxAuthorizeIssuer, Holder: issuer},
		issuer: issuer,
	}), nil
}

// Revoke flips the revoked flag of an existing credential immediately. It
// stands in for the contract's owner-only revocation.
func (l *Ledger) Revoke(id ledger.CredentialID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mine(l.now())
	rec, ok := l.credentials[id]
	if !ok {
		return ledger.ErrNotFound
	}
	rec.Revoked = true
	return nil
}

func (l *Ledger) checkIssue(issuer ledger.Address, id ledger.CredentialID, req ledger.IssueRequest, now time.Time) error {
	if _, exists := l.credentials[id]; exists {
		return &ledger.AlreadyIssuedError{ID: id}
	}
	if !l.issuers[issuer] {
		return &ledger.RevertError{Reason: ledger.RevertIssuerNotAuthorized}
	}
	if !req.Expiry.After(now) {
		return &ledger.RevertError{Reason: ledger.RevertExpiryInPast}
	}
	return nil
}

// submit must be called with mu held.
func (l *Ledger) submit(ctx context.Context, now time.Time, tx *pendingTx) ledger.TxHandle {
	tx.handle.TxHash = txHash(tx.handle.Kind)
	tx.handle.SubmittedAt = now
	tx.block, tx.finalAt = l.blockAt(now)
	l.pending = append(l.pending, tx)

	l.logger.DebugContext(ctx, "transaction submitted",
		"tx_hash", tx.handle.TxHash,
		"kind", string(tx.handle.Kind),
		"block_number", tx.block,
	)
	return tx.handle
}

func txHash(kind ledger.TxKind) string {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte(uuid.NewString()))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// mine applies every pending transaction final at or before now, in
// submission order. It must be called with mu held.
func (l *Ledger) mine(now time.Time) {
	n := 0
	for _, tx := range l.pending {
		if tx.finalAt.After(now) {
			break
		}
		l.receipts[tx.handle.TxHash] = l.apply(tx)
		n++
	}
	l.pending = slices.Delete(l.pending, 0, n)
}

func (l *Ledger) apply(tx *pendingTx) receipt {
	blockTime := tx.finalAt
	conf := ledger.Confirmation{
		TxHash:         tx.handle.TxHash,
		Kind:           tx.handle.Kind,
		CredentialID:   tx.handle.CredentialID,
		Holder:         tx.handle.Holder,
		ContentAddress: tx.handle.ContentAddress,
		BlockNumber:    tx.block,
		BlockTime:      blockTime,
	}

	switch tx.handle.Kind {
	case ledger.TxRegisterHolder:
		req := tx.register
		if _, exists := l.holders[req.Holder]; exists {
			return receipt{err: &ledger.RevertError{Reason: ledger.RevertHolderRegistered}}
		}
		l.holders[req.Holder] = &ledger.Holder{
			Address:        req.Holder,
			Name:           req.Name,
			Email:          req.Email,
			ContentAddress: req.ContentAddress,
			MemberSince:    blockTime,
		}

	case ledger.TxIssueCredential:
		req := tx.issue
		id := tx.handle.CredentialID
		if err := l.checkIssue(tx.issuer, id, *req, blockTime); err != nil {
			return receipt{err: err}
		}
		l.credentials[id] = &ledger.CredentialRecord{
			ID:             id,
			Issuer:         tx.issuer,
			Holder:         req.Holder,
			Type:           req.Type,
			Name:           req.Name,
			Description:    req.Description,
			IssuanceTime:   blockTime,
			ExpiryTime:     time.Unix(req.Expiry.Unix(), 0).UTC(),
			ContentAddress: req.ContentAddress,
		}
		l.byHolder[req.Holder] = append(l.byHolder[req.Holder], id)
		if h, ok := l.holders[req.Holder]; ok {
			h.CredentialCount++
		}

	case ledger.TxAuthorizeIssuer:
		l.issuers[tx.issuer] = true
	}

	return receipt{conf: conf}
}

func (l *Ledger) Confirm(ctx context.Context, h ledger.TxHandle) (ledger.Confirmation, error) {
	deadline := l.now().Add(l.confirmTimeout)
	for {
		l.mu.Lock()
		now := l.now()
		l.mine(now)
		r, done := l.receipts[h.TxHash]
		var finalAt time.Time
		if !done {
			idx := slices.IndexFunc(l.pending, func(tx *pendingTx) bool { return tx.handle.TxHash == h.TxHash })
			if idx < 0 {
				l.mu.Unlock()
				return ledger.Confirmation{}, ledger.ErrNotFound
			}
			finalAt = l.pending[idx].finalAt
		}
		l.mu.Unlock()

		if done {
			return r.conf, r.err
		}
		if !now.Before(deadline) {
			return ledger.Confirmation{}, ledger.ErrTxTimeout
		}

		wake := finalAt
		if deadline.Before(wake) {
			wake = deadline
		}
		if err := l.sleep(ctx, wake.Sub(now)); err != nil {
			return ledger.Confirmation{}, err
		}
	}
}

func (l *Ledger) GetCredential(ctx context.Context, id ledger.CredentialID) (ledger.CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return ledger.CredentialRecord{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mine(l.now())

	rec, ok := l.credentials[id]
	if !ok {
		return ledger.CredentialRecord{}, ledger.ErrNotFound
	}
	return *rec, nil
}

func (l *Ledger) GetHolderCredentials(ctx context.Context, holder ledger.Address) ([]ledger.CredentialID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mine(l.now())

	return slices.Clone(l.byHolder[holder]), nil
}

func (l *Ledger) GetHolder(ctx context.Context, holder ledger.Address) (ledger.Holder, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Holder{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mine(l.now())

	h, ok := l.holders[holder]
	if !ok {
		return ledger.Holder{}, ledger.ErrNotFound
	}
	return *h, nil
}

func (l *Ledger) VerifyCredential(ctx context.Context, id ledger.CredentialID) (bool, string, error) {
	if err := ctx.Err(); err != nil {
		return false, "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.mine(now)

	rec, ok := l.credentials[id]
	switch {
	case !ok:
		return false, ledger.ReasonNotFound, nil
	case rec.Revoked:
		return false, ledger.ReasonRevoked, nil
	case !rec.ExpiryTime.After(now):
		return false, ledger.ReasonExpired, nil
	default:
		return true, ledger.ReasonValid, nil
	}
}

var _ ledger.Client = (*Ledger)(nil)
