package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapHTTPErrorCategories(t *testing.T) {
	cases := map[int]Category{
		http.StatusUnauthorized:        CategoryCredentialExpired,
		http.StatusForbidden:           CategoryForbidden,
		http.StatusNotFound:            CategoryNotFound,
		http.StatusConflict:            CategoryConflict,
		http.StatusUnprocessableEntity: CategoryValidationFailed,
		http.StatusTooManyRequests:     CategoryRateLimited,
		http.StatusInternalServerError: CategoryServerError,
		http.StatusBadGateway:          CategoryServerError,
		http.StatusServiceUnavailable:  CategoryServerError,
		http.StatusGatewayTimeout:      CategoryServerError,
		0:                              CategoryNetworkError,
		http.StatusTeapot:              CategoryUnknown,
		http.StatusBadRequest:          CategoryUnknown,
	}
	for status, want := range cases {
		t.Run(fmt.Sprintf("%d", status), func(t *testing.T) {
			got := MapHTTPError(status, nil)
			assert.Equal(t, want, got.Category)
			assert.Equal(t, status, got.HTTPStatus)
		})
	}
}

func TestMapHTTPErrorExtractsValidationFields(t *testing.T) {
	body := []byte(`{"message":"invalid task","errors":[{"field":"title","message":"required"},{"field":"due","message":"in the past"}]}`)
	got := MapHTTPError(http.StatusUnprocessableEntity, body)

	require.Equal(t, CategoryValidationFailed, got.Category)
	require.Equal(t, "invalid task", got.Message)
	require.Equal(t, []FieldError{{Field: "title", Message: "required"}, {Field: "due", Message: "in the past"}}, got.FieldErrors)
}

func TestMapHTTPErrorExtractsFieldMap(t *testing.T) {
	body := []byte(`{"error":{"message":"bad","fields":{"name":["too short"]}}}`)
	got := MapHTTPError(http.StatusUnprocessableEntity, body)

	require.Equal(t, "bad", got.Message)
	require.Equal(t, []FieldError{{Field: "name", Message: "too short"}}, got.FieldErrors)
}

func TestMapBootstrapErrorNeverCredentialExpired(t *testing.T) {
	login := MapBootstrapError(http.StatusUnauthorized, nil, false)
	refresh := MapBootstrapError(http.StatusUnauthorized, nil, true)
	other := MapBootstrapError(http.StatusConflict, nil, false)

	assert.Equal(t, CategoryInvalidCredentials, login.Category)
	assert.Equal(t, CategorySessionExpired, refresh.Category)
	assert.Equal(t, CategoryConflict, other.Category)
}

func TestMapNetworkError(t *testing.T) {
	assert.Equal(t, "timeout", MapNetworkError(context.DeadlineExceeded).Code)
	assert.Equal(t, "request_canceled", MapNetworkError(fmt.Errorf("do: %w", context.Canceled)).Code)
	assert.Equal(t, "connection_error", MapNetworkError(fmt.Errorf("dial tcp: connection refused")).Code)
	assert.Equal(t, CategoryNetworkError, MapNetworkError(fmt.Errorf("boom")).Category)
}

func TestRetryableAndHelpers(t *testing.T) {
	assert.True(t, MapHTTPError(http.StatusBadGateway, nil).IsRetryable())
	assert.True(t, MapNetworkError(context.DeadlineExceeded).IsRetryable())
	assert.False(t, MapNetworkError(context.Canceled).IsRetryable())
	assert.False(t, MapHTTPError(http.StatusTooManyRequests, nil).IsRetryable())

	wrapped := fmt.Errorf("load tasks: %w", SessionExpired(7, "", nil))
	assert.True(t, Is(wrapped, CategorySessionExpired))
	apiErr, ok := As(wrapped)
	require.True(t, ok)
	assert.EqualValues(t, 7, apiErr.Episode)
	assert.True(t, apiErr.AsSubsumed().Subsumed)
	assert.False(t, apiErr.Subsumed)
}
