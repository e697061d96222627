package httptransport

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	authmw "credledger/pkg/platform/middleware/auth"
	"credledger/pkg/platform/middleware/request"
	"credledger/pkg/platform/httputil"
	"credledger/pkg/requestcontext"
)

type stubVerifier struct{}

func (stubVerifier) VerifyBearer(token string) (*authmw.Claims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &authmw.Claims{Subject: "ada@example.com", TokenID: "jti-1"}, nil
}

type publicRoutes struct{}

func (publicRoutes) Register(r chi.Router) {
	r.Get("/api/public", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"request_id": requestcontext.RequestID(r.Context())})
	})
	r.Post("/api/public", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

type mixedRoutes struct{}

func (mixedRoutes) Register(r chi.Router) {
	r.Get("/api/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func (mixedRoutes) RegisterAuthenticated(r chi.Router) {
	r.Get("/api/things/{id}/private", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"subject": requestcontext.Subject(r.Context())})
	})
}

type RouterSuite struct {
	suite.Suite
	router http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	reg := prometheus.NewRegistry()
	s.router = NewRouter(Config{
		Logger:       slog.New(slog.DiscardHandler),
		Verifier:     stubVerifier{},
		Metrics:      request.NewMetrics(reg),
		Gatherer:     reg,
		MaxBodyBytes: 1 << 10,
		Public:       []Routes{publicRoutes{}},
		Mixed: []interface {
			Routes
			AuthenticatedRoutes
		}{mixedRoutes{}},
	})
}

func (s *RouterSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) TestPublicRoute() {
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/public", nil))

	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))
	s.Contains(rec.Body.String(), rec.Header().Get("X-Request-ID"))
}

func (s *RouterSuite) TestClientRequestIDIsReused() {
	req := httptest.NewRequest(http.MethodGet, "/api/public", nil)
	req.Header.Set("X-Request-ID", "trace-123")

	rec := s.serve(req)

	s.Equal("trace-123", rec.Header().Get("X-Request-ID"))
}

func (s *RouterSuite) TestProtectedRoute() {
	s.Run("missing token", func() {
		rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/things/1/private", nil))
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("invalid token", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/things/1/private", nil)
		req.Header.Set("Authorization", "Bearer nope")
		s.Equal(http.StatusUnauthorized, s.serve(req).Code)
	})

	s.Run("valid token carries the subject", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/things/1/private", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := s.serve(req)
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "ada@example.com")
	})

	s.Run("sibling public route stays open", func() {
		rec := s.serve(httptest.NewRequest(http.MethodGet, "/api/things/1", nil))
		s.Equal(http.StatusOK, rec.Code)
	})
}

func (s *RouterSuite) TestContentTypeEnforced() {
	req := httptest.NewRequest(http.MethodPost, "/api/public", strings.NewReader(`<x/>`))
	req.Header.Set("Content-Type", "application/xml")

	rec := s.serve(req)

	s.Equal(http.StatusUnsupportedMediaType, rec.Code)
}

func (s *RouterSuite) TestMetricsEndpoint() {
	s.serve(httptest.NewRequest(http.MethodGet, "/api/things/42", nil))

	rec := s.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `credledger_endpoint_latency_seconds_count{endpoint="/api/things/{id}",method="GET",status="2xx"} 1`)
}

type slowRoutes struct{}

func (slowRoutes) Register(r chi.Router) {
	r.Post("/api/credentials/issue", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "pending", "transactionHash": "0xabc"})
	})
}

func (s *RouterSuite) TestRequestTimeoutKeepsHandlerResponse() {
	router := NewRouter(Config{
		Logger:         slog.New(slog.DiscardHandler),
		Verifier:       stubVerifier{},
		RequestTimeout: 30 * time.Millisecond,
		Protected:      []Routes{slowRoutes{}},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/credentials/issue", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer good")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	s.Equal(http.StatusAccepted, rec.Code)
	s.Contains(rec.Body.String(), `"transactionHash":"0xabc"`)
}
