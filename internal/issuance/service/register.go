package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"credledger/internal/issuance/models"
	"credledger/internal/ledger"
	"credledger/internal/platform/tracer"
	dErrors "credledger/pkg/domain-errors"
	"credledger/pkg/requestcontext"
)

type profilePayload struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	RegisteredAt string `json:"registeredAt"`
}

// RegisterHolder stores the holder profile and registers the holder on the
// ledger with the same store-then-link and pending-on-timeout policy as Issue.
// The acting principal must be the holder's email.
func (s *Service) RegisterHolder(ctx context.Context, cmd models.RegisterHolderCommand) (receipt *models.Receipt, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanIssuanceRegister,
		tracer.String(tracer.AttrHolder, cmd.Holder),
		tracer.String(tracer.AttrPrincipalHash, tracer.HashEmail(cmd.Principal)),
	)
	defer func() { span.End(err) }()

	kind := ledger.TxRegisterHolder
	holder, err := s.validateRegister(cmd)
	if err != nil {
		s.failed(ctx, kind, err)
		return nil, err
	}

	payload, err := json.Marshal(profilePayload{
		Name:         cmd.Name,
		Email:        cmd.Email,
		RegisteredAt: requestcontext.Now(ctx).UTC().Format(time.RFC3339),
	})
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode profile")
		s.failed(ctx, kind, err)
		return nil, err
	}

	addr, err := s.upload(ctx, payload)
	if err != nil {
		s.failed(ctx, kind, err)
		return nil, err
	}

	h, err := s.submit(ctx, kind, addr, func(ctx context.Context) (ledger.TxHandle, error) {
		return s.ledger.RegisterHolder(ctx, ledger.RegisterHolderRequest{
			Holder:         holder,
			Name:           cmd.Name,
			Email:          cmd.Email,
			ContentAddress: addr.String(),
		})
	})
	if err != nil {
		s.failed(ctx, kind, err)
		return nil, err
	}

	return s.confirm(ctx, h, false)
}

func (s *Service) validateRegister(cmd models.RegisterHolderCommand) (ledger.Address, error) {
	principal := strings.TrimSpace(cmd.Principal)
	if principal == "" {
		return ledger.Address{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	holder, err := ledger.ParseAddress(cmd.Holder)
	if err != nil || holder.IsZero() {
		return ledger.Address{}, validationError("holder address is invalid")
	}
	if strings.TrimSpace(cmd.Name) == "" {
		return ledger.Address{}, validationError("name is required")
	}
	if strings.TrimSpace(cmd.Email) == "" {
		return ledger.Address{}, validationError("email is required")
	}
	if !strings.EqualFold(principal, strings.TrimSpace(cmd.Email)) {
		return ledger.Address{}, dErrors.New(dErrors.CodeForbidden, "holders can only register their own email")
	}
	return holder, nil
}
