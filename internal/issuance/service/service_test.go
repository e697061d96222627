package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ContentStore,Ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"credledger/internal/contentstore"
	"credledger/internal/issuance/metrics"
	"credledger/internal/issuance/models"
	"credledger/internal/issuance/service/mocks"
	"credledger/internal/ledger"
	dErrors "credledger/pkg/domain-errors"
	"credledger/pkg/requestcontext"
)

const (
	principal   = "registrar@example.com"
	holderHex   = "0x00000000000000000000000000000000000000bc"
	contentAddr = contentstore.Address("bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku")
	txHash      = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

var (
	holder = ledger.Address{19: 0xbc}
	now    = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expiry = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockContentStore
	ledger  *mocks.MockLedger
	metrics *metrics.Metrics
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockContentStore(s.ctrl)
	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store, s.ledger,
		WithLogger(slog.New(slog.DiscardHandler)),
		WithMetrics(s.metrics),
	)
	s.ctx = requestcontext.WithTime(context.Background(), now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) issueCommand() models.IssueCommand {
	return models.IssueCommand{
		Holder:    holderHex,
		Type:      "degree",
		Name:      "BSc CS",
		Expiry:    expiry,
		Metadata:  json.RawMessage(`{"school":"X"}`),
		Principal: principal,
	}
}

func (s *ServiceSuite) issueHandle() ledger.TxHandle {
	return ledger.TxHandle{
		TxHash:         txHash,
		Kind:           ledger.TxIssueCredential,
		CredentialID:   ledger.CredentialID{1},
		Holder:         holder,
		ContentAddress: contentAddr.String(),
	}
}

func (s *ServiceSuite) confirmation() ledger.Confirmation {
	h := s.issueHandle()
	return ledger.Confirmation{
		TxHash:         h.TxHash,
		Kind:           h.Kind,
		CredentialID:   h.CredentialID,
		Holder:         h.Holder,
		ContentAddress: h.ContentAddress,
		BlockNumber:    12,
		BlockTime:      now.Add(2 * time.Second),
	}
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), err.Error())
}

func (s *ServiceSuite) TestIssue_Confirmed() {
	s.store.EXPECT().Put(gomock.Any(), json.RawMessage(`{"school":"X"}`)).Return(contentAddr, nil)
	s.ledger.EXPECT().IssueCredential(gomock.Any(), ledger.IssueRequest{
		Holder:         holder,
		Type:           "degree",
		Name:           "BSc CS",
		Expiry:         expiry,
		ContentAddress: contentAddr.String(),
	}).Return(s.issueHandle(), nil)
	s.ledger.EXPECT().Confirm(gomock.Any(), s.issueHandle()).Return(s.confirmation(), nil)

	receipt, err := s.service.Issue(s.ctx, s.issueCommand())

	s.Require().NoError(err)
	s.Equal(models.StatusConfirmed, receipt.Status)
	s.Equal(ledger.CredentialID{1}, receipt.CredentialID)
	s.Equal(contentAddr, receipt.ContentAddress)
	s.Require().NotNil(receipt.Block)
	s.Equal(uint64(12), receipt.Block.Number)
	s.InDelta(1, testutil.ToFloat64(s.metrics.Outcomes.WithLabelValues("issue_credential", "confirmed")), 0)
}

func (s *ServiceSuite) TestIssue_ValidationHasNoSideEffects() {
	tests := map[string]func(*models.IssueCommand){
		"expiry in the past":  func(c *models.IssueCommand) { c.Expiry = now.Add(-24 * time.Hour) },
		"expiry equal to now": func(c *models.IssueCommand) { c.Expiry = now },
		"malformed holder":    func(c *models.IssueCommand) { c.Holder = "0xabc" },
		"zero holder":         func(c *models.IssueCommand) { c.Holder = "0x0000000000000000000000000000000000000000" },
		"blank type":          func(c *models.IssueCommand) { c.Type = " " },
		"blank name":          func(c *models.IssueCommand) { c.Name = "" },
		"metadata not json":   func(c *models.IssueCommand) { c.Metadata = json.RawMessage(`{school`) },
	}
	for name, mutate := range tests {
		s.Run(name, func() {
			s.store.EXPECT().Put(gomock.Any(), gomock.Any()).Times(0)
			s.ledger.EXPECT().IssueCredential(gomock.Any(), gomock.Any()).Times(0)
			s.ledger.EXPECT().Confirm(gomock.Any(), gomock.Any()).Times(0)

			cmd := s.issueCommand()
			mutate(&cmd)
			_, err := s.service.Issue(s.ctx, cmd)

			s.requireCode(err, dErrors.CodeValidation)
			s.Equal(StepValidate, FailedStep(err))
		})
	}
}

func (s *ServiceSuite) TestIssue_RequiresPrincipal() {
	cmd := s.issueCommand()
	cmd.Principal = ""

	_, err := s.service.Issue(s.ctx, cmd)

	s.requireCode(err, dErrors.CodeUnauthorized)
}

func (s *ServiceSuite) TestIssue_DefaultPayload() {
	var uploaded json.RawMessage
	s.store.EXPECT().Put(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, payload json.RawMessage) (contentstore.Address, error) {
			uploaded = payload
			return contentAddr, nil
		})
	s.ledger.EXPECT().IssueCredential(gomock.Any(), gomock.Any()).Return(s.issueHandle(), nil)
	s.ledger.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(s.confirmation(), nil)

	cmd := s.issueCommand()
	cmd.Metadata = nil
	_, err := s.service.Issue(s.ctx, cmd)

	s.Require().NoError(err)
	s.JSONEq(`{"credentialType":"degree","credentialName":"BSc CS","description":"","issuedBy":"registrar@example.com"}`, string(uploaded))
}

func (s *ServiceSuite) TestIssue_UploadFailureSkipsLedger() {
	s.Run("store unavailable", func() {
		s.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(contentstore.Address(""), contentstore.ErrStoreUnavailable)
		s.ledger.EXPECT().IssueCredential(gomock.Any(), gomock.Any()).Times(0)

		_, err := s.service.Issue(s.ctx, s.issueCommand())

		s.requireCode(err, dErrors.CodeUnavailable)
		s.Equal(StepUpload, FailedStep(err))
		s.ErrorIs(err, contentstore.ErrStoreUnavailable)
	})

	s.Run("store rejected", func() {
		s.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(contentstore.Address(""), contentstore.ErrStoreRejected)
		s.ledger.EXPECT().IssueCredential(gomock.Any(), gomock.Any()).Times(0)

		_, err := s.service.Issue(s.ctx, s.issueCommand())

		s.requireCode(err, dErrors.CodeBadRequest)
		s.Equal(StepUpload, FailedStep(err))
	})

	s.InDelta(2, testutil.ToFloat64(s.metrics.StepFailures.WithLabelValues(StepUpload)), 0)
}

func (s *ServiceSuite) TestIssue_SubmitFailures() {
	s.Run("network failure is not retried", func() {
		s.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(contentAddr, nil)
		s.ledger.EXPECT().IssueCredential(gomock.Any(), gomock.Any()).Return(ledger.TxHandle{}, ledger.ErrSubmitFailed).Times(1)
		s.ledger.EXPECT().Confirm(gomock.Any(), gomock.Any()).Times(0)

		_, err := s.service.Issue(s.ctx, s.issueCommand())

		s.requireCode(err, dErrors.CodeUnavailable)
		s.Equal(StepSubmit, FailedStep(err))
		s.ErrorIs(err, ledger.ErrSubmitFailed)
	})

	s.Run("revert is a rejection", func() {
		s.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(contentAddr, nil)
		s.ledger.EXPECT().IssueCredential(gomock.Any(), gomock.Any()).
			Return(ledger.TxHandle{}, &ledger.RevertError{Reason: ledger.RevertIssuerNotAuthorized})

		_, err := s.service.Issue(s.ctx, s.issueCommand())

		s.requireCode(err, dErrors.CodeRejected)
		s.Contains(err.Error(), ledger.RevertIssuerNotAuthorized)
	})
}

func (s *ServiceSuite) TestIssue_AlreadyIssued() {
	existing := ledger.CredentialID{9}

	s.Run("at submission", func() {
		s.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(contentAddr, nil)
		s.ledger.EXPECT().IssueCredential(gomock.Any(), gomock.Any()).
			Return(ledger.TxHandle{}, &ledger.AlreadyIssuedError{ID: existing})
		s.ledger.EXPECT().Confirm(gomock.Any(), gomock.Any()).Times(0)

		receipt, err := s.service.Issue(s.ctx, s.issueCommand())

		s.Require().NoError(err)
		s.Equal(models.StatusAlreadyIssued, receipt.Status)
		s.Equal(existing, receipt.CredentialID)
	})

	s.Run("at confirmation", func() {
		s.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(contentAddr, nil)
		s.ledger.EXPECT().IssueCredential(gomock.Any(), gomock.Any()).Return(s.issueHandle(), nil)
		s.ledger.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(ledger.Confirmation{}, &ledger.AlreadyIssuedError{ID: existing})

		receipt, err := s.service.Issue(s.ctx, s.issueCommand())

		s.Require().NoError(err)
		s.Equal(models.StatusAlreadyIssued, receipt.Status)
		s.Equal(existing, receipt.CredentialID)
		s.Equal(txHash, receipt.TxHash)
	})
}

func (s *ServiceSuite) TestIssue_PendingOutcomes() {
	cases := map[string]error{
		"confirmation timeout": ledger.ErrTxTimeout,
		"caller cancelled":     context.Canceled,
		"caller deadline":      context.DeadlineExceeded,
		"ledger unreachable":   ledger.ErrUnavailable,
	}
	for name, confirmErr := range cases {
		s.Run(name, func() {
			s.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(contentAddr, nil)
			s.ledger.EXPECT().IssueCredential(gomock.Any(), gomock.Any()).Return(s.issueHandle(), nil).Times(1)
			s.ledger.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(ledger.Confirmation{}, confirmErr)

			receipt, err := s.service.Issue(s.ctx, s.issueCommand())

			s.Require().NoError(err)
			s.Equal(models.StatusPending, receipt.Status)
			s.Equal(txHash, receipt.TxHash)
			s.Equal(ledger.CredentialID{1}, receipt.CredentialID)
			s.Nil(receipt.Block)
		})
	}
}

func (s *ServiceSuite) TestIssue_RevertAtConfirmation() {
	s.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(contentAddr, nil)
	s.ledger.EXPECT().IssueCredential(gomock.Any(), gomock.Any()).Return(s.issueHandle(), nil)
	s.ledger.EXPECT().Confirm(gomock.Any(), gomock.Any()).
		Return(ledger.Confirmation{}, &ledger.RevertError{Reason: ledger.RevertExpiryInPast})

	_, err := s.service.Issue(s.ctx, s.issueCommand())

	s.requireCode(err, dErrors.CodeRejected)
	s.Equal(StepConfirm, FailedStep(err))
}

func (s *ServiceSuite) registerCommand() models.RegisterHolderCommand {
	return models.RegisterHolderCommand{
		Holder:    holderHex,
		Name:      "Ada",
		Email:     "ada@example.com",
		Principal: "Ada@Example.com",
	}
}

func (s *ServiceSuite) TestRegisterHolder() {
	var uploaded json.RawMessage
	s.store.EXPECT().Put(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, payload json.RawMessage) (contentstore.Address, error) {
			uploaded = payload
			return contentAddr, nil
		})
	h := ledger.TxHandle{TxHash: txHash, Kind: ledger.TxRegisterHolder, Holder: holder, ContentAddress: contentAddr.String()}
	s.ledger.EXPECT().RegisterHolder(gomock.Any(), ledger.RegisterHolderRequest{
		Holder:         holder,
		Name:           "Ada",
		Email:          "ada@example.com",
		ContentAddress: contentAddr.String(),
	}).Return(h, nil)
	s.ledger.EXPECT().Confirm(gomock.Any(), h).Return(ledger.Confirmation{
		TxHash:         txHash,
		Kind:           ledger.TxRegisterHolder,
		Holder:         holder,
		ContentAddress: contentAddr.String(),
		BlockNumber:    3,
		BlockTime:      now,
	}, nil)

	receipt, err := s.service.RegisterHolder(s.ctx, s.registerCommand())

	s.Require().NoError(err)
	s.Equal(models.StatusConfirmed, receipt.Status)
	s.Equal(holder, receipt.Holder)
	s.Equal(ledger.TxRegisterHolder, receipt.Kind)
	s.JSONEq(`{"name":"Ada","email":"ada@example.com","registeredAt":"2026-01-01T00:00:00Z"}`, string(uploaded))
}

func (s *ServiceSuite) TestRegisterHolder_PrincipalMismatch() {
	s.store.EXPECT().Put(gomock.Any(), gomock.Any()).Times(0)
	s.ledger.EXPECT().RegisterHolder(gomock.Any(), gomock.Any()).Times(0)

	cmd := s.registerCommand()
	cmd.Principal = "mallory@example.com"
	_, err := s.service.RegisterHolder(s.ctx, cmd)

	s.requireCode(err, dErrors.CodeForbidden)
}

func (s *ServiceSuite) TestRegisterHolder_AlreadyRegistered() {
	s.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(contentAddr, nil)
	s.ledger.EXPECT().RegisterHolder(gomock.Any(), gomock.Any()).
		Return(ledger.TxHandle{}, &ledger.RevertError{Reason: ledger.RevertHolderRegistered})

	_, err := s.service.RegisterHolder(s.ctx, s.registerCommand())

	s.requireCode(err, dErrors.CodeConflict)
}

func (s *ServiceSuite) TestResume() {
	s.Run("rejects malformed hash without calling the ledger", func() {
		s.ledger.EXPECT().Confirm(gomock.Any(), gomock.Any()).Times(0)

		_, err := s.service.Resume(s.ctx, "0x1234")

		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("confirmed receipt comes from the ledger", func() {
		s.ledger.EXPECT().Confirm(gomock.Any(), ledger.TxHandle{TxHash: txHash}).Return(s.confirmation(), nil)

		receipt, err := s.service.Resume(s.ctx, txHash)

		s.Require().NoError(err)
		s.Equal(models.StatusConfirmed, receipt.Status)
		s.Equal(ledger.TxIssueCredential, receipt.Kind)
		s.Equal(contentAddr, receipt.ContentAddress)
	})

	s.Run("still in flight", func() {
		s.ledger.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(ledger.Confirmation{}, ledger.ErrTxTimeout)

		receipt, err := s.service.Resume(s.ctx, txHash)

		s.Require().NoError(err)
		s.Equal(models.StatusPending, receipt.Status)
		s.Equal(txHash, receipt.TxHash)
	})

	s.Run("unknown transaction", func() {
		s.ledger.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(ledger.Confirmation{}, ledger.ErrNotFound)

		_, err := s.service.Resume(s.ctx, txHash)

		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("ledger unreachable", func() {
		s.ledger.EXPECT().Confirm(gomock.Any(), gomock.Any()).Return(ledger.Confirmation{}, ledger.ErrUnavailable)

		_, err := s.service.Resume(s.ctx, txHash)

		s.requireCode(err, dErrors.CodeUnavailable)
		s.True(errors.Is(err, ledger.ErrUnavailable))
	})
}
