package requesttime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credledger/pkg/requestcontext"
)

func serve(t *testing.T, fn func(ctx context.Context)) {
	t.Helper()
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/credentials", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddleware_PinsRequestTime(t *testing.T) {
	before := time.Now()
	var pinned time.Time
	serve(t, func(ctx context.Context) {
		pinned = requestcontext.Now(ctx)
	})
	after := time.Now()

	assert.False(t, pinned.Before(before))
	assert.False(t, pinned.After(after))
}

// An expiry check and the issuance timestamp taken later in the same request
// must see the same instant.
func TestMiddleware_ExpiryAndIssuanceAgree(t *testing.T) {
	var checkedAt, issuedAt time.Time
	serve(t, func(ctx context.Context) {
		checkedAt = requestcontext.Now(ctx)
		time.Sleep(5 * time.Millisecond)
		issuedAt = requestcontext.Now(ctx)
	})

	assert.Equal(t, checkedAt, issuedAt)
}

func TestNow(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	t.Run("falls back to wall clock outside requests", func(t *testing.T) {
		before := time.Now()
		got := requestcontext.Now(context.Background())
		assert.False(t, got.Before(before))
	})

	t.Run("honours a pinned time", func(t *testing.T) {
		ctx := requestcontext.WithTime(context.Background(), fixed)
		assert.Equal(t, fixed, requestcontext.Now(ctx))
	})

	t.Run("innermost pin wins", func(t *testing.T) {
		ctx := requestcontext.WithTime(context.Background(), fixed)
		ctx = requestcontext.WithTime(ctx, fixed.Add(time.Hour))
		assert.Equal(t, fixed.Add(time.Hour), requestcontext.Now(ctx))
	})
}
