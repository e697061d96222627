package service

import (
	"context"
	"regexp"

	"credledger/internal/issuance/models"
	"credledger/internal/ledger"
	"credledger/internal/platform/tracer"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Resume confirms a previously submitted transaction by hash. The receipt
// is rebuilt from the ledger's confirmation, so nothing but the hash needs
// to survive between the pending receipt and the resume.
func (s *Service) Resume(ctx context.Context, txHash string) (receipt *models.Receipt, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanIssuanceResume,
		tracer.String(tracer.AttrTxHash, txHash),
	)
	defer func() { span.End(err) }()

	if !txHashPattern.MatchString(txHash) {
		return nil, validationError("transaction hash is invalid")
	}
	return s.confirm(ctx, ledger.TxHandle{TxHash: txHash}, true)
}
