package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"credledger/internal/contentstore"
	"credledger/internal/issuance/models"
	"credledger/internal/ledger"
	"credledger/internal/platform/tracer"
	"credledger/pkg/requestcontext"
)

func (s *Service) upload(ctx context.Context, payload json.RawMessage) (addr contentstore.Address, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanIssuanceUpload)
	defer func() { span.End(err) }()

	addr, err = s.store.Put(ctx, payload)
	if err != nil {
		return "", uploadError(err)
	}
	span.SetAttributes(tracer.Text(tracer.AttrContentAddress, addr))
	return addr, nil
}

// submit sends one ledger write. AlreadyIssued is returned untouched for the
// caller to turn into a receipt; anything else is classified.
func (s *Service) submit(
	ctx context.Context,
	kind ledger.TxKind,
	addr contentstore.Address,
	send func(context.Context) (ledger.TxHandle, error),
) (h ledger.TxHandle, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanIssuanceSubmit,
		tracer.Text(tracer.AttrContentAddress, addr),
	)
	defer func() { span.End(err) }()

	h, err = send(ctx)
	if err != nil {
		var already *ledger.AlreadyIssuedError
		if errors.As(err, &already) {
			return ledger.TxHandle{}, err
		}
		// The blob stays behind unreferenced. It is harmless and is not
		// re-linked: a resubmission must come from the caller.
		s.logger.WarnContext(ctx, "ledger submission failed, content left unlinked",
			"request_id", requestcontext.RequestID(ctx),
			"kind", string(kind),
			"content_address", addr.String(),
			"error", err,
		)
		return ledger.TxHandle{}, ledgerError(StepSubmit, err)
	}

	span.SetAttributes(tracer.String(tracer.AttrTxHash, h.TxHash))
	s.logger.InfoContext(ctx, "ledger transaction submitted",
		"request_id", requestcontext.RequestID(ctx),
		"kind", string(kind),
		"tx_hash", h.TxHash,
		"content_address", addr.String(),
	)
	return h, nil
}

// confirm waits for finality. On the issuance path a confirm failure that is
// not a decided outcome (revert, unknown transaction) leaves the receipt
// pending, since the write may still land. A resume reports such failures.
func (s *Service) confirm(ctx context.Context, h ledger.TxHandle, resume bool) (receipt *models.Receipt, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanIssuanceConfirm,
		tracer.String(tracer.AttrTxHash, h.TxHash),
	)
	defer func() { span.End(err) }()

	start := time.Now()
	conf, confirmErr := s.ledger.Confirm(ctx, h)
	s.metrics.ObserveConfirm(time.Since(start))

	var already *ledger.AlreadyIssuedError
	var revert *ledger.RevertError
	switch {
	case confirmErr == nil:
		receipt = confirmedReceipt(conf)
		span.SetAttributes(
			tracer.Uint64(tracer.AttrBlockNumber, conf.BlockNumber),
			tracer.String(tracer.AttrOutcome, string(receipt.Status)),
		)
		s.metrics.IncOutcome(string(conf.Kind), string(models.StatusConfirmed))
		s.logger.InfoContext(ctx, "ledger transaction confirmed",
			"request_id", requestcontext.RequestID(ctx),
			"kind", string(conf.Kind),
			"tx_hash", conf.TxHash,
			"credential_id", conf.CredentialID.String(),
			"content_address", conf.ContentAddress,
			"block_number", conf.BlockNumber,
		)
		return receipt, nil

	case errors.As(confirmErr, &already):
		return s.alreadyIssued(ctx, h, already.ID), nil

	case stillPending(confirmErr),
		!resume && !errors.As(confirmErr, &revert) && !errors.Is(confirmErr, ledger.ErrNotFound):
		span.SetAttributes(tracer.String(tracer.AttrOutcome, string(models.StatusPending)))
		s.metrics.IncOutcome(kindLabel(h.Kind), string(models.StatusPending))
		s.logger.WarnContext(ctx, "ledger transaction not final, returning pending receipt",
			"request_id", requestcontext.RequestID(ctx),
			"kind", string(h.Kind),
			"tx_hash", h.TxHash,
			"error", confirmErr,
		)
		return pendingReceipt(h), nil

	default:
		err = ledgerError(StepConfirm, confirmErr)
		s.failed(ctx, h.Kind, err)
		return nil, err
	}
}

func (s *Service) alreadyIssued(ctx context.Context, h ledger.TxHandle, id ledger.CredentialID) *models.Receipt {
	s.metrics.IncOutcome(string(ledger.TxIssueCredential), string(models.StatusAlreadyIssued))
	s.logger.InfoContext(ctx, "credential already issued",
		"request_id", requestcontext.RequestID(ctx),
		"credential_id", id.String(),
		"tx_hash", h.TxHash,
	)
	return &models.Receipt{
		Kind:           ledger.TxIssueCredential,
		Status:         models.StatusAlreadyIssued,
		CredentialID:   id,
		Holder:         h.Holder,
		ContentAddress: contentstore.Address(h.ContentAddress),
		TxHash:         h.TxHash,
	}
}

func (s *Service) failed(ctx context.Context, kind ledger.TxKind, err error) {
	step := FailedStep(err)
	if step == "" {
		step = StepValidate
	}
	s.metrics.IncStepFailure(step)
	s.metrics.IncOutcome(kindLabel(kind), "failed")
	s.logger.WarnContext(ctx, "issuance failed",
		"request_id", requestcontext.RequestID(ctx),
		"kind", string(kind),
		"step", step,
		"error", err,
	)
}

func confirmedReceipt(conf ledger.Confirmation) *models.Receipt {
	return &models.Receipt{
		Kind:           conf.Kind,
		Status:         models.StatusConfirmed,
		CredentialID:   conf.CredentialID,
		Holder:         conf.Holder,
		ContentAddress: contentstore.Address(conf.ContentAddress),
		TxHash:         conf.TxHash,
		Block:          &models.BlockReference{Number: conf.BlockNumber, Time: conf.BlockTime},
	}
}

func pendingReceipt(h ledger.TxHandle) *models.Receipt {
	return &models.Receipt{
		Kind:           h.Kind,
		Status:         models.StatusPending,
		CredentialID:   h.CredentialID,
		Holder:         h.Holder,
		ContentAddress: contentstore.Address(h.ContentAddress),
		TxHash:         h.TxHash,
	}
}

// kindLabel names the transaction kind for metrics. A resumed transaction
// that has not been confirmed has no known kind.
func kindLabel(k ledger.TxKind) string {
	if k == "" {
		return "unknown"
	}
	return string(k)
}
