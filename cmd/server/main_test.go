package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/edu-cms/pkg/educms"
	"github.com/tendant/edu-cms/pkg/educms/api"
	"github.com/tendant/edu-cms/pkg/educms/config"
	memorymedia "github.com/tendant/edu-cms/pkg/educms/media/memory"
	"github.com/tendant/edu-cms/pkg/educms/repo/memory"
)

func newTestRouter(t *testing.T, environment string) http.Handler {
	t.Helper()
	media := memorymedia.New()
	svc, err := educms.New(educms.WithRepository(memory.New()), educms.WithMediaStore(media))
	require.NoError(t, err)
	auth, err := api.NewAuth("secret", time.Hour)
	require.NoError(t, err)

	cfg, err := config.Load(config.WithEnvironment(environment))
	require.NoError(t, err)
	return routes(api.NewHandler(svc, media, auth, nil), cfg, time.Minute)
}

func TestRoutes(t *testing.T) {
	r := newTestRouter(t, "testing")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/articles", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/v1/articles", nil))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutes_DevelopmentCORS(t *testing.T) {
	r := newTestRouter(t, "development")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/v1/courses", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewLogger(t *testing.T) {
	logger := newLogger("debug", "production")
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = newLogger("bogus", "development")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
