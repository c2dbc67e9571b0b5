package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingLevelFollowsStatus(t *testing.T) {
	cases := map[int]zapcore.Level{
		http.StatusOK:                    zapcore.InfoLevel,
		http.StatusNoContent:             zapcore.InfoLevel,
		http.StatusRequestEntityTooLarge: zapcore.WarnLevel,
		http.StatusInternalServerError:   zapcore.ErrorLevel,
	}

	for status, level := range cases {
		core, logs := observer.New(zapcore.DebugLevel)
		handler := middleware.RequestID(LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products", nil))

		entries := logs.All()
		require.Len(t, entries, 1)
		assert.Equal(t, level, entries[0].Level, "status %d", status)

		fields := entries[0].ContextMap()
		assert.Equal(t, int64(status), fields["status"])
		assert.NotEmpty(t, fields["request_id"])
	}
}
