package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"credledger/internal/ledger"
	"credledger/internal/verification/models"
	dErrors "credledger/pkg/domain-errors"
	"credledger/pkg/platform/httputil"
	"credledger/pkg/requestcontext"
)

// Service is the verification resolver as seen by the route layer.
type Service interface {
	Verify(ctx context.Context, id ledger.CredentialID) (*models.Result, error)
	HolderProfile(ctx context.Context, holder ledger.Address) (*models.HolderProfile, error)
	HolderCredentials(ctx context.Context, holder ledger.Address) (*models.HolderCredentials, error)
}

// Handler maps the read endpoints onto the resolver.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the public read routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/credentials/{credentialId}/verify", h.HandleVerify)
	r.Get("/api/holders/{address}", h.HandleHolderProfile)
}

// RegisterAuthenticated registers the routes that need a bearer token; the
// parent router applies the auth middleware.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Get("/api/holders/{address}/credentials", h.HandleHolderCredentials)
	// Path used by existing wallet clients.
	r.Get("/api/credentials/{address}", h.HandleHolderCredentials)
}

// HandleVerify implements GET /api/credentials/{credentialId}/verify.
// An unknown id answers 200 with isValid=false and reason "not found".
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := ledger.ParseCredentialID(chi.URLParam(r, "credentialId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid credential id"))
		return
	}

	result, err := h.service.Verify(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "verify credential failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
			"credential_id", id.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleHolderProfile implements GET /api/holders/{address}.
func (h *Handler) HandleHolderProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder, ok := h.holderParam(w, r)
	if !ok {
		return
	}

	profile, err := h.service.HolderProfile(ctx, holder)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// HandleHolderCredentials implements GET /api/holders/{address}/credentials.
func (h *Handler) HandleHolderCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := httputil.RequireSubject(ctx, h.logger); err != nil {
		httputil.WriteError(w, err)
		return
	}
	holder, ok := h.holderParam(w, r)
	if !ok {
		return
	}

	out, err := h.service.HolderCredentials(ctx, holder)
	if err != nil {
		h.logger.WarnContext(ctx, "list holder credentials failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
			"holder", holder.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) holderParam(w http.ResponseWriter, r *http.Request) (ledger.Address, bool) {
	holder, err := ledger.ParseAddress(chi.URLParam(r, "address"))
	if err != nil || holder.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid holder address"))
		return ledger.Address{}, false
	}
	return holder, true
}
