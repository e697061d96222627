package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	dErrors "credledger/pkg/domain-errors"
	"credledger/pkg/requestcontext"
)

// TokenVerifier validates a bearer token and returns the claims the
// middleware needs.
type TokenVerifier interface {
	VerifyBearer(token string) (*Claims, error)
}

// Claims is the subset of token claims placed into the request context.
type Claims struct {
	Subject string
	TokenID string
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth returns middleware that validates the bearer token and stores
// the subject and token id in the request context.
func RequireAuth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := verifier.VerifyBearer(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			if claims.Subject == "" {
				logger.WarnContext(ctx, "unauthorized access - token without subject",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithSubject(ctx, claims.Subject, claims.TokenID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSubjectMatch is the capability check for mutating operations: the
// authenticated subject must be the principal the operation acts for.
func RequireSubjectMatch(ctx context.Context, principal string) error {
	subject := requestcontext.Subject(ctx)
	if subject == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !strings.EqualFold(subject, strings.TrimSpace(principal)) {
		return dErrors.New(dErrors.CodeForbidden, "token subject does not match acting principal")
	}
	return nil
}
