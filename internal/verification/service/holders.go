package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"credledger/internal/ledger"
	"credledger/internal/verification/models"
	dErrors "credledger/pkg/domain-errors"
)

// HolderProfile returns the holder record and its credential ids.
func (s *Service) HolderProfile(ctx context.Context, holder ledger.Address) (*models.HolderProfile, error) {
	var (
		rec ledger.Holder
		ids []ledger.CredentialID
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = s.ledger.GetHolder(gctx, holder)
		return err
	})
	g.Go(func() error {
		var err error
		ids, err = s.ledger.GetHolderCredentials(gctx, holder)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "holder not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger unavailable")
	}

	if ids == nil {
		ids = []ledger.CredentialID{}
	}
	return &models.HolderProfile{
		Holder: models.Holder{
			Address:         rec.Address,
			Name:            rec.Name,
			Email:           rec.Email,
			ContentAddress:  rec.ContentAddress,
			MemberSince:     rec.MemberSince,
			CredentialCount: rec.CredentialCount,
		},
		Credentials: ids,
	}, nil
}

// HolderCredentials verifies every credential of holder with bounded
// concurrency. Results keep the ledger's order and degrade independently.
func (s *Service) HolderCredentials(ctx context.Context, holder ledger.Address) (*models.HolderCredentials, error) {
	ids, err := s.ledger.GetHolderCredentials(ctx, holder)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger unavailable")
	}

	results := make([]models.Result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			r, err := s.Verify(gctx, id)
			if err != nil {
				return err
			}
			results[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.HolderCredentials{Address: holder, Credentials: results}, nil
}
