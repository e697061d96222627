package service

import (
	"context"
	"encoding/json"
	"errors"

	"golang.org/x/sync/errgroup"

	"credledger/internal/contentstore"
	"credledger/internal/ledger"
	"credledger/internal/platform/tracer"
	"credledger/internal/verification/metrics"
	"credledger/internal/verification/models"
	dErrors "credledger/pkg/domain-errors"
	"credledger/pkg/requestcontext"
)

// lookup is what the record branch of Verify produces.
type lookup struct {
	record    ledger.CredentialRecord
	found     bool
	content   json.RawMessage
	available bool
}

// Verify checks validity and reads the record concurrently; the record
// branch goes on to fetch content. An unknown id is a result, not an error.
// A content failure only sets ContentUnavailable. Only a ledger failure
// fails the call, since without it there is no answer to give.
func (s *Service) Verify(ctx context.Context, id ledger.CredentialID) (result *models.Result, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanVerify,
		tracer.Text(tracer.AttrCredentialID, id),
	)
	defer func() { span.End(err) }()

	var (
		valid  bool
		reason string
		found  lookup
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var verr error
		valid, reason, verr = s.ledger.VerifyCredential(gctx, id)
		return verr
	})
	g.Go(func() error {
		rec, gerr := s.ledger.GetCredential(gctx, id)
		if errors.Is(gerr, ledger.ErrNotFound) {
			return nil
		}
		if gerr != nil {
			return gerr
		}
		found.record, found.found = rec, true
		found.content, found.available = s.fetchContent(gctx, id, rec.ContentAddress)
		return nil
	})
	if err = g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "ledger read failed during verification",
			"request_id", requestcontext.RequestID(ctx),
			"credential_id", id.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger unavailable")
	}

	if !found.found {
		s.metrics.IncVerification(metrics.ResultNotFound)
		span.SetAttributes(tracer.Bool(tracer.AttrValid, false))
		return &models.Result{CredentialID: id, Valid: false, Reason: ledger.ReasonNotFound}, nil
	}

	result = &models.Result{
		CredentialID:       id,
		Valid:              valid,
		Reason:             reason,
		Credential:         models.CredentialFromRecord(found.record),
		Content:            found.content,
		ContentUnavailable: !found.available,
	}
	if valid {
		s.metrics.IncVerification(metrics.ResultValid)
	} else {
		s.metrics.IncVerification(metrics.ResultInvalid)
	}
	if result.ContentUnavailable {
		s.metrics.IncContentUnavailable()
	}
	span.SetAttributes(
		tracer.Bool(tracer.AttrValid, valid),
		tracer.Bool(tracer.AttrContentMissing, result.ContentUnavailable),
	)
	return result, nil
}

// fetchContent reads the credential payload through the breaker. It reports
// whether content was obtained; failures are logged, never returned.
func (s *Service) fetchContent(ctx context.Context, id ledger.CredentialID, raw string) (json.RawMessage, bool) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanVerifyContent,
		tracer.String(tracer.AttrContentAddress, raw),
	)
	var spanErr error
	defer func() { span.End(spanErr) }()

	addr, err := contentstore.ParseAddress(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "credential references a malformed content address",
			"request_id", requestcontext.RequestID(ctx),
			"credential_id", id.String(),
			"content_address", raw,
		)
		return nil, false
	}

	if s.breaker != nil && !s.breaker.Allow() {
		span.SetAttributes(tracer.Bool(tracer.AttrBreakerOpen, true))
		return nil, false
	}

	data, err := s.store.Get(ctx, addr)
	switch {
	case err == nil:
		s.recordSuccess()
		return data, true

	case contentstore.IsNotFound(err):
		// The store answered; the content is simply missing.
		s.recordSuccess()
		s.logger.WarnContext(ctx, "credential content not found",
			"request_id", requestcontext.RequestID(ctx),
			"credential_id", id.String(),
			"content_address", raw,
		)
		return nil, false

	case ctx.Err() != nil:
		if s.breaker != nil {
			s.breaker.Cancel()
		}
		return nil, false

	default:
		spanErr = err
		s.recordFailure(ctx)
		s.logger.WarnContext(ctx, "content store unavailable",
			"request_id", requestcontext.RequestID(ctx),
			"credential_id", id.String(),
			"content_address", raw,
			"error", err,
		)
		return nil, false
	}
}

func (s *Service) recordSuccess() {
	if s.breaker == nil {
		return
	}
	if s.breaker.RecordSuccess().Closed {
		s.metrics.SetBreakerOpen(false)
		s.logger.Info("content store breaker closed", "breaker", s.breaker.Name())
	}
}

func (s *Service) recordFailure(ctx context.Context) {
	if s.breaker == nil {
		return
	}
	if s.breaker.RecordFailure().Opened {
		s.metrics.SetBreakerOpen(true)
		s.logger.ErrorContext(ctx, "content store breaker opened",
			"request_id", requestcontext.RequestID(ctx),
			"breaker", s.breaker.Name(),
		)
	}
}
