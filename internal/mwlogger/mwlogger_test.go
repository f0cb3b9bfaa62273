package mwlogger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMWLogger_RequestID(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "generated", header: ""},
		{name: "propagated", header: "req-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxHasLogger bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxHasLogger = r.Context().Value(loggerWithRequestID{}) != nil
				w.WriteHeader(http.StatusTeapot)
			})

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-Id", tt.header)
			}
			w := httptest.NewRecorder()

			NewMWLogger(next).ServeHTTP(w, req)

			require.Equal(t, http.StatusTeapot, w.Code)
			require.True(t, ctxHasLogger)
			if tt.header != "" {
				require.Equal(t, tt.header, w.Header().Get("X-Request-Id"))
			} else {
				require.NotEmpty(t, w.Header().Get("X-Request-Id"))
			}
		})
	}
}

func TestLoggerFromContext_Fallback(t *testing.T) {
	require.NotPanics(t, func() {
		l := LoggerFromContext(context.Background())
		l.Info().Msg("fallback logger works")
	})
}
