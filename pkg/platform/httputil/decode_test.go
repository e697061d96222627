package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "credledger/pkg/domain-errors"
)

type holderRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r *holderRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *holderRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type addressRequest struct {
	Address string `json:"address"`
}

func (r *addressRequest) Validate() error {
	if !strings.HasPrefix(r.Address, "0x") {
		return dErrors.New(dErrors.CodeBadRequest, "address must be 0x-prefixed")
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"Ada","email":"ada@example.com"}`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[holderRequest](w, req, discardLogger())

		require.True(t, ok)
		assert.Equal(t, "Ada", result.Name)
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{invalid`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[holderRequest](w, req, discardLogger())

		assert.False(t, ok)
		assert.Nil(t, result)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeError(t, w)["error"])
	})

	t.Run("oversized body is reported as too large", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"`+strings.Repeat("a", 64)+`"}`))
		req.Body = http.MaxBytesReader(w, req.Body, 16)

		_, ok := DecodeJSON[holderRequest](w, req, discardLogger())

		assert.False(t, ok)
		assert.Equal(t, "request body too large", decodeError(t, w)["error_description"])
	})
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("normalizes before validating", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"Ada","email":" ADA@Example.com "}`))
		w := httptest.NewRecorder()

		result, ok := DecodeAndPrepare[holderRequest](w, req, discardLogger())

		require.True(t, ok)
		assert.Equal(t, "ada@example.com", result.Email)
	})

	t.Run("plain validation error maps to validation_error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":""}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[holderRequest](w, req, discardLogger())

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "validation_error", body["error"])
		assert.Contains(t, body["error_description"], "name is required")
	})

	t.Run("domain error keeps its code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"address":"abc"}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[addressRequest](w, req, discardLogger())

		assert.False(t, ok)
		assert.Equal(t, "bad_request", decodeError(t, w)["error"])
	})
}
