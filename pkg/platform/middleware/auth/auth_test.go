package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	dErrors "credledger/pkg/domain-errors"
	"credledger/pkg/requestcontext"
)

type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) VerifyBearer(token string) (*Claims, error) {
	args := m.Called(token)
	if claims := args.Get(0); claims != nil {
		return claims.(*Claims), args.Error(1)
	}
	return nil, args.Error(1)
}

type captureHandler struct {
	called bool
	ctx    context.Context
}

func (h *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type AuthMiddlewareSuite struct {
	suite.Suite
	verifier *MockTokenVerifier
	next     *captureHandler
	handler  http.Handler
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.verifier = new(MockTokenVerifier)
	s.next = &captureHandler{}
	s.handler = RequireAuth(s.verifier, slog.Default())(s.next)
}

func (s *AuthMiddlewareSuite) TearDownTest() {
	s.verifier.AssertExpectations(s.T())
}

func (s *AuthMiddlewareSuite) serve(authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/credentials/issue", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *AuthMiddlewareSuite) TestMissingHeader() {
	w := s.serve("")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), "Missing or invalid Authorization header")
	s.False(s.next.called)
}

func (s *AuthMiddlewareSuite) TestNonBearerScheme() {
	w := s.serve("Basic dXNlcjpwYXNz")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.False(s.next.called)
}

func (s *AuthMiddlewareSuite) TestInvalidToken() {
	s.verifier.On("VerifyBearer", "bad").Return(nil, errors.New("signature invalid"))

	w := s.serve("Bearer bad")

	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), "Invalid or expired token")
	s.False(s.next.called)
}

func (s *AuthMiddlewareSuite) TestEmptySubjectRejected() {
	s.verifier.On("VerifyBearer", "tok").Return(&Claims{TokenID: "jti"}, nil)

	w := s.serve("Bearer tok")

	s.Equal(http.StatusUnauthorized, w.Code)
	s.False(s.next.called)
}

func (s *AuthMiddlewareSuite) TestValidTokenPopulatesContext() {
	s.verifier.On("VerifyBearer", "tok").Return(&Claims{Subject: "ada@example.com", TokenID: "jti-1"}, nil)

	w := s.serve("Bearer tok")

	s.Equal(http.StatusOK, w.Code)
	s.Require().True(s.next.called)
	s.Equal("ada@example.com", requestcontext.Subject(s.next.ctx))
	s.Equal("jti-1", requestcontext.TokenID(s.next.ctx))
}

func TestRequireSubjectMatch(t *testing.T) {
	ctx := requestcontext.WithSubject(context.Background(), "ada@example.com", "jti")

	if err := RequireSubjectMatch(ctx, " ADA@example.com"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := RequireSubjectMatch(ctx, "eve@example.com"); !dErrors.HasCode(err, dErrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := RequireSubjectMatch(context.Background(), "ada@example.com"); !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
