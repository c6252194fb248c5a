package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/videotube/internal/common"
	"github.com/dmitrijs2005/videotube/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.NewAPIError(common.ErrorValidation, "x"), http.StatusBadRequest},
		{common.NewAPIError(common.ErrInvalidToken, "x"), http.StatusUnauthorized},
		{common.NewAPIError(common.ErrStaleToken, "x"), http.StatusUnauthorized},
		{common.ErrorUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("wrap: %w", common.ErrorNotFound), http.StatusNotFound},
		{common.NewAPIError(common.ErrorAlreadyExists, "x"), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(context.Background(), rec, logging.NewNop(), fmt.Errorf("%w: db password=hunter2", common.ErrorInternal))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "internal server error", env.Message)
	assert.Nil(t, env.Data)
}

func TestWriteData_EmptyObject(t *testing.T) {
	rec := httptest.NewRecorder()
	writeData(rec, http.StatusOK, nil, "done")
	assert.JSONEq(t, `{"success":true,"statusCode":200,"data":{},"message":"done"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRecoverer(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(&logs, nil)))
	h := NewHandler(nil, HandlerConfig{}, logger)
	rec := httptest.NewRecorder()
	h.recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "kaboom")
	assert.NotContains(t, rec.Body.String(), "goroutine")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "kaboom", entry["panic"])
	assert.Contains(t, entry["stack"], "runtime/debug.Stack")
}

func TestBearerTokenAndSafeExt(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer   abc"))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken("Bearer"))
	assert.Equal(t, "", bearerToken(""))

	assert.Equal(t, ".png", safeExt("Me.PNG"))
	assert.Equal(t, "", safeExt("noext"))
	assert.Equal(t, "", safeExt("evil.p*g"))
	assert.Equal(t, "", safeExt("x.averyveryverylongext"))
}
