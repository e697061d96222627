package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"credledger/internal/issuance/models"
	authmw "credledger/pkg/platform/middleware/auth"
	"credledger/pkg/platform/httputil"
	"credledger/pkg/requestcontext"
)

// Service is the issuance coordinator as seen by the route layer.
type Service interface {
	Issue(ctx context.Context, cmd models.IssueCommand) (*models.Receipt, error)
	RegisterHolder(ctx context.Context, cmd models.RegisterHolderCommand) (*models.Receipt, error)
	Resume(ctx context.Context, txHash string) (*models.Receipt, error)
}

// Handler maps the mutating endpoints onto the coordinator.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the issuance routes. Every route needs an authenticated
// subject: the parent router applies the auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/holders/register", h.HandleRegisterHolder)
	r.Post("/api/credentials/issue", h.HandleIssue)
	r.Get("/api/transactions/{txHash}", h.HandleResume)
}

// HandleIssue implements POST /api/credentials/issue.
//
// Input: { "holderAddress": "0x...", "credentialType": "degree", "credentialName": "BSc CS",
// "description": "...", "expiryDate": "2030-01-01", "metadata": {...} }
// Output: 201 confirmed, 202 pending, 200 already issued.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject, err := httputil.RequireSubject(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.IssueCredentialRequest](w, r, h.logger)
	if !ok {
		return
	}
	expiry, _ := models.ParseExpiry(req.ExpiryDate)

	receipt, err := h.service.Issue(ctx, models.IssueCommand{
		Holder:      req.HolderAddress,
		Type:        req.CredentialType,
		Name:        req.CredentialName,
		Description: req.Description,
		Expiry:      expiry,
		Metadata:    req.Metadata,
		Principal:   subject,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "issue credential failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, statusFor(receipt, http.StatusCreated), receipt)
}

// HandleRegisterHolder implements POST /api/holders/register. The token
// subject must be the email being registered.
func (h *Handler) HandleRegisterHolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject, err := httputil.RequireSubject(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.RegisterHolderRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := authmw.RequireSubjectMatch(ctx, req.Email); err != nil {
		h.logger.WarnContext(ctx, "holder registration for another principal",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.service.RegisterHolder(ctx, models.RegisterHolderCommand{
		Holder:    req.Address,
		Name:      req.Name,
		Email:     req.Email,
		Principal: subject,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "register holder failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, statusFor(receipt, http.StatusCreated), receipt)
}

// HandleResume implements GET /api/transactions/{txHash}.
func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := httputil.RequireSubject(ctx, h.logger); err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.service.Resume(ctx, chi.URLParam(r, "txHash"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, statusFor(receipt, http.StatusOK), receipt)
}

func statusFor(receipt *models.Receipt, confirmed int) int {
	switch receipt.Status {
	case models.StatusPending:
		return http.StatusAccepted
	case models.StatusAlreadyIssued:
		return http.StatusOK
	default:
		return confirmed
	}
}
