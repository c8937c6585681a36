package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ecocert/pkg/domain-errors"
	"ecocert/pkg/platform/sentinel"
)

func writeErr(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	w := httptest.NewRecorder()
	WriteError(w, err)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w, body
}

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w, body := writeErr(t, dErrors.New(dErrors.CodeInternal, "db failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body, "error_description")
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w, body := writeErr(t, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", body["error"])
		assert.Equal(t, "invalid input", body["error_description"])
	})

	t.Run("bare sentinel not found maps to 404", func(t *testing.T) {
		w, body := writeErr(t, sentinel.ErrNotFound)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", body["error"])
	})

	t.Run("bare sentinel conflict maps to 409", func(t *testing.T) {
		w, body := writeErr(t, sentinel.ErrConflict)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "conflict", body["error"])
	})

	t.Run("unknown error becomes opaque 500", func(t *testing.T) {
		w, body := writeErr(t, assert.AnError)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body, "error_description")
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Reason string `json:"reason"`
	}

	t.Run("decodes valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"reason":"incomplete file"}`))
		var dst payload
		require.NoError(t, DecodeJSON(req, &dst))
		assert.Equal(t, "incomplete file", dst.Reason)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"reason":"x","extra":true}`))
		var dst payload
		err := DecodeJSON(req, &dst)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"reason":`))
		var dst payload
		err := DecodeJSON(req, &dst)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}
