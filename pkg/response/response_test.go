package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tennis-club-api/internal/models"
	appErrors "github.com/noah-isme/tennis-club-api/pkg/errors"
	"github.com/noah-isme/tennis-club-api/pkg/middleware/requestid"
)

func serve(t *testing.T, h gin.HandlerFunc, header map[string]string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", h)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env Envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestJSONCarriesPagination(t *testing.T) {
	w, env := serve(t, func(c *gin.Context) {
		JSON(c, http.StatusOK, []string{"a"}, &models.Pagination{Page: 2, PageSize: 10, TotalCount: 11})
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	require.Equal(t, 11, env.Pagination.TotalCount)
	require.Nil(t, env.Error)
}

func TestAccepted(t *testing.T) {
	w, env := serve(t, func(c *gin.Context) { Accepted(c, gin.H{"status": "ok"}) }, nil)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, map[string]interface{}{"status": "ok"}, env.Data)
}

func TestErrorMapsDomainErrorAndEchoesRequestID(t *testing.T) {
	w, env := serve(t, func(c *gin.Context) {
		Error(c, appErrors.Clone(appErrors.ErrNotFound, "training not found"))
	}, map[string]string{"X-Request-ID": "req-42"})

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, appErrors.ErrNotFound.Code, env.Error.Code)
	require.Equal(t, "training not found", env.Error.Message)
	require.Equal(t, "req-42", env.Meta["requestId"])
}

func TestErrorHidesUnknownErrors(t *testing.T) {
	w, env := serve(t, func(c *gin.Context) { Error(c, errors.New("pq: connection reset")) }, nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, appErrors.ErrInternal.Code, env.Error.Code)
	require.NotContains(t, env.Error.Message, "pq:")
}

func TestNoContent(t *testing.T) {
	w, _ := serve(t, func(c *gin.Context) { NoContent(c) }, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}
