package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	dErrors "credledger/pkg/domain-errors"
	"credledger/pkg/platform/httputil"
	"credledger/pkg/requestcontext"
	"credledger/pkg/validation"
)

// Service issues bearer tokens.
type Service interface {
	IssueToken(ctx context.Context, subject, name string) (string, time.Time, error)
}

// Handler serves the token endpoints. There are no passwords: presenting an
// email is enough to obtain a token for it.
type Handler struct {
	tokens Service
	logger *slog.Logger
}

func New(tokens Service, logger *slog.Logger) *Handler {
	return &Handler{tokens: tokens, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/auth/register", h.HandleRegister)
	r.Post("/api/auth/login", h.HandleLogin)
}

type RegisterRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Name  string `json:"name" validate:"required,notblank,max=100"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
}

func (r *RegisterRequest) Validate() error { return validation.Validate(r) }

type LoginRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() error { return validation.Validate(r) }

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Message   string    `json:"message"`
}

// HandleRegister implements POST /api/auth/register.
//
// Input: { "email": "ada@example.com", "name": "Ada" }
// Output: { "token": "...", "expires_at": "...", "message": "Registration successful" }
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger)
	if !ok {
		return
	}
	h.issue(w, r, req.Email, req.Name, "Registration successful")
}

// HandleLogin implements POST /api/auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger)
	if !ok {
		return
	}
	h.issue(w, r, req.Email, "", "Login successful")
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request, email, name, message string) {
	ctx := r.Context()
	token, expiresAt, err := h.tokens.IssueToken(ctx, email, name)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token"))
		return
	}

	h.logger.InfoContext(ctx, "token issued",
		"request_id", requestcontext.RequestID(ctx),
		"expires_at", expiresAt,
	)
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Message:   message,
	})
}
