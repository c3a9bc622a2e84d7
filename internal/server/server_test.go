package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"branch-ledger/internal/config"
)

func TestRetryPolicyFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.TxMaxAttempts = 7
	cfg.TxRetryInterval = 4 * time.Millisecond

	policy := RetryPolicy(cfg)

	assert.Equal(t, 7, policy.MaxAttempts)
	assert.Equal(t, 4*time.Millisecond, policy.InitialInterval)
	assert.Equal(t, 100*time.Millisecond, policy.MaxInterval)
}

func TestNewLoggerFollowsLogLevel(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.ServerPort = "0"
	assert.True(t, NewLogger(cfg).Enabled(ctx, slog.LevelInfo), "an ephemeral port must not silence logs")

	cfg.LogLevel = "warn"
	assert.False(t, NewLogger(cfg).Enabled(ctx, slog.LevelInfo))
	assert.True(t, NewLogger(cfg).Enabled(ctx, slog.LevelWarn))

	cfg.LogLevel = config.LogLevelOff
	assert.False(t, NewLogger(cfg).Enabled(ctx, slog.LevelError))
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen int

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		seen = w.(*responseWriter).statusCode
	})

	rec := httptest.NewRecorder()
	loggingMiddleware(logger)(inner).ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, http.StatusTeapot, seen)
}
