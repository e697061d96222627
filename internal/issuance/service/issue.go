package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"credledger/internal/issuance/models"
	"credledger/internal/ledger"
	"credledger/internal/platform/tracer"
	dErrors "credledger/pkg/domain-errors"
	"credledger/pkg/requestcontext"
)

// credentialPayload is uploaded when the caller supplies no metadata. It has
// no timestamp, so identical requests address identical content.
type credentialPayload struct {
	CredentialType string `json:"credentialType"`
	CredentialName string `json:"credentialName"`
	Description    string `json:"description"`
	IssuedBy       string `json:"issuedBy"`
}

// Issue stores the credential payload, links it on the ledger and waits for
// finality. A confirmation timeout or cancellation returns a pending
// receipt; a ledger "already issued" answer returns an already_issued
// receipt carrying the existing id. Every other failure is terminal for the
// request and never retried.
func (s *Service) Issue(ctx context.Context, cmd models.IssueCommand) (receipt *models.Receipt, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanIssuanceIssue,
		tracer.String(tracer.AttrHolder, cmd.Holder),
		tracer.String(tracer.AttrPrincipalHash, tracer.HashEmail(cmd.Principal)),
	)
	defer func() { span.End(err) }()

	kind := ledger.TxIssueCredential
	req, payload, err := s.validateIssue(ctx, cmd)
	if err != nil {
		s.failed(ctx, kind, err)
		return nil, err
	}

	addr, err := s.upload(ctx, payload)
	if err != nil {
		s.failed(ctx, kind, err)
		return nil, err
	}
	req.ContentAddress = addr.String()

	h, err := s.submit(ctx, kind, addr, func(ctx context.Context) (ledger.TxHandle, error) {
		return s.ledger.IssueCredential(ctx, req)
	})
	if err != nil {
		var already *ledger.AlreadyIssuedError
		if errors.As(err, &already) {
			return s.alreadyIssued(ctx, ledger.TxHandle{Kind: kind, Holder: req.Holder, ContentAddress: req.ContentAddress}, already.ID), nil
		}
		s.failed(ctx, kind, err)
		return nil, err
	}
	span.SetAttributes(tracer.Text(tracer.AttrCredentialID, h.CredentialID))

	return s.confirm(ctx, h, false)
}

func (s *Service) validateIssue(ctx context.Context, cmd models.IssueCommand) (ledger.IssueRequest, json.RawMessage, error) {
	if strings.TrimSpace(cmd.Principal) == "" {
		return ledger.IssueRequest{}, nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	holder, err := ledger.ParseAddress(cmd.Holder)
	if err != nil || holder.IsZero() {
		return ledger.IssueRequest{}, nil, validationError("holder address is invalid")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return ledger.IssueRequest{}, nil, validationError("credential type is required")
	}
	if strings.TrimSpace(cmd.Name) == "" {
		return ledger.IssueRequest{}, nil, validationError("credential name is required")
	}
	if !cmd.Expiry.After(requestcontext.Now(ctx)) {
		return ledger.IssueRequest{}, nil, validationError("expiry must be in the future")
	}

	payload := cmd.Metadata
	if len(payload) == 0 {
		payload, err = json.Marshal(credentialPayload{
			CredentialType: cmd.Type,
			CredentialName: cmd.Name,
			Description:    cmd.Description,
			IssuedBy:       cmd.Principal,
		})
		if err != nil {
			return ledger.IssueRequest{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode credential payload")
		}
	} else if !json.Valid(payload) {
		return ledger.IssueRequest{}, nil, validationError("metadata must be a JSON document")
	}

	return ledger.IssueRequest{
		Holder:      holder,
		Type:        cmd.Type,
		Name:        cmd.Name,
		Description: cmd.Description,
		Expiry:      cmd.Expiry,
	}, payload, nil
}
