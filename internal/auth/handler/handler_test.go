package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"credledger/internal/auth/handler/mocks"
)

type HandlerSuite struct {
	suite.Suite
	router      http.Handler
	ctrl        *gomock.Controller
	mockService *mocks.MockService
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	r := chi.NewRouter()
	New(s.mockService, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestRegister() {
	expiresAt := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	s.mockService.EXPECT().
		IssueToken(gomock.Any(), "ada@example.com", "Ada").
		Return("signed-token", expiresAt, nil)

	rec := s.post("/api/auth/register", `{"email":" Ada@Example.com ","name":"Ada"}`)

	s.Equal(http.StatusOK, rec.Code)
	var got TokenResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal("signed-token", got.Token)
	s.Equal(expiresAt, got.ExpiresAt)
	s.Equal("Registration successful", got.Message)
}

func (s *HandlerSuite) TestRegister_Validation() {
	s.mockService.EXPECT().IssueToken(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	for _, body := range []string{
		`{"email":"not-an-email","name":"Ada"}`,
		`{"email":"ada@example.com","name":"   "}`,
		`{"email":"ada@example.com"}`,
		`{"email": "`,
	} {
		rec := s.post("/api/auth/register", body)
		s.Equal(http.StatusBadRequest, rec.Code, body)
	}
}

func (s *HandlerSuite) TestLogin() {
	s.mockService.EXPECT().
		IssueToken(gomock.Any(), "ada@example.com", "").
		Return("signed-token", time.Now(), nil)

	rec := s.post("/api/auth/login", `{"email":"ada@example.com"}`)

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Login successful")
}

func (s *HandlerSuite) TestLogin_ServiceError() {
	s.mockService.EXPECT().
		IssueToken(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", time.Time{}, errors.New("sign failed"))

	rec := s.post("/api/auth/login", `{"email":"ada@example.com"}`)

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Contains(rec.Body.String(), `"error":"internal_error"`)
}
