package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "credledger/pkg/domain-errors"
	"credledger/pkg/requestcontext"
)

func TestWriteError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", dErrors.New(dErrors.CodeValidation, "expiry must be in the future"), http.StatusBadRequest, "validation_error"},
		{"unavailable", dErrors.New(dErrors.CodeUnavailable, "content store unavailable"), http.StatusServiceUnavailable, "service_unavailable"},
		{"rejected", dErrors.New(dErrors.CodeRejected, "issuer not authorized"), http.StatusUnprocessableEntity, "issuance_rejected"},
		{"forbidden", dErrors.New(dErrors.CodeForbidden, "subject mismatch"), http.StatusForbidden, "forbidden"},
		{"conflict", dErrors.New(dErrors.CodeConflict, "holder already registered"), http.StatusConflict, "conflict"},
		{"wrapped domain error", fmt.Errorf("handler: %w", dErrors.New(dErrors.CodeNotFound, "holder not found")), http.StatusNotFound, "not_found"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tc.wantCode, decodeError(t, w)["error"])
		})
	}
}

func TestRequireSubject(t *testing.T) {
	t.Run("returns subject", func(t *testing.T) {
		ctx := requestcontext.WithSubject(context.Background(), "ada@example.com", "jti-1")
		subject, err := RequireSubject(ctx, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", subject)
	})

	t.Run("missing subject is internal", func(t *testing.T) {
		_, err := RequireSubject(context.Background(), discardLogger())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})
}
