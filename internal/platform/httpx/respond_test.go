package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("invoice 9: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("number: %w", ErrDuplicate), http.StatusConflict},
		{fmt.Errorf("transition: %w", ErrConflict), http.StatusConflict},
		{fmt.Errorf("body: %w", ErrValidation), http.StatusBadRequest},
		{ErrForbidden, http.StatusForbidden},
		{ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("pdf: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("pool exhausted"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("password=hunter2"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Detail)
}

func TestNotFoundLookupShape(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFoundLookup(rec, "Invoice not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invoice not found"}`, rec.Body.String())
}

type sampleRequest struct {
	Name     string  `json:"name" validate:"required"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","quantity":0}`))
	var target sampleRequest
	err := DecodeAndValidate(req, &target)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "sampleRequest.Name")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Widget","quantity":2}`))
	require.NoError(t, DecodeAndValidate(req, &target))
	assert.Equal(t, "Widget", target.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	require.ErrorIs(t, DecodeAndValidate(req, &target), ErrValidation)
}
