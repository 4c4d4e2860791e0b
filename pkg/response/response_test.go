package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, rec
}

func TestErrorCarriesFieldAndCode(t *testing.T) {
	c, rec := newContext()
	Error(c, appErrors.Invalid("excludedDays[0]", "unknown day"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))

	var body Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "INVALID_INPUT", body.Error.Code)
	assert.Equal(t, "excludedDays[0]", body.Error.Field)
}

func TestErrorRetryableSetsRetryAfter(t *testing.T) {
	c, rec := newContext()
	Error(c, appErrors.ErrSearchTimeout)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, defaultRetryAfter, rec.Header().Get("Retry-After"))

	c, rec = newContext()
	c.Header("Retry-After", "7")
	Error(c, appErrors.ErrTooManyRequests)
	assert.Equal(t, "7", rec.Header().Get("Retry-After"))
}

func TestErrorHidesUnknownErrors(t *testing.T) {
	c, rec := newContext()
	Error(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
