package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imrishuroy/storefront-orderflow/internal/config"
)

func TestSetupRouter_MemoryBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("STOREFRONT_STORAGE__BACKEND", "memory")
	cfg, err := config.Load("")
	require.NoError(t, err)

	r, err := setupRouter(cfg, memoryBackend(cfg), zap.NewNop())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/admin/products/poster", strings.NewReader(`{"title":"Poster","price":"20","stock":3}`))
	req.Header.Set("X-User-Id", cfg.Store.OperatorUserID)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `path="/admin/products/:id"`)
}
