package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/tollgate/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const inboundID = "01ARZ3NDEKTSV4RRFFQ69G5FAV"

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		require.Equal(t, want, slogx.ParseLevel(in), "level %q", in)
	}
}

func TestFromContext_Default(t *testing.T) {
	require.Same(t, slog.Default(), slogx.FromContext(context.Background()))
}

func TestHTTPMiddleware(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := slogx.New(slogx.Config{Service: "test", Format: "json", Output: &buf})

	var seen *slog.Logger
	h := slogx.HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = slogx.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/brew", nil)
	req.Header.Set(slogx.RequestIDHeader, inboundID)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	require.Equal(t, inboundID, rec.Header().Get(slogx.RequestIDHeader))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "http_request", record["msg"])
	require.Equal(t, inboundID, record["req_id"])
	require.Equal(t, "/brew", record["path"])
	require.EqualValues(t, http.StatusTeapot, record["status"])
	require.EqualValues(t, len("short and stout"), record["bytes"])
}

func TestHTTPMiddleware_GeneratesRequestID(t *testing.T) {
	h := slogx.HTTPMiddleware(slogx.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, rec.Header().Get(slogx.RequestIDHeader), 26)
}

func TestHTTPMiddleware_ReplacesForeignRequestID(t *testing.T) {
	var got string
	h := slogx.HTTPMiddleware(slogx.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = slogx.RequestIDFromContext(r.Context())
	}))

	for _, in := range []string{"req-123", "x\r\ninjected: 1", strings.Repeat("A", 300)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(slogx.RequestIDHeader, in)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.NotEqual(t, in, got)
		require.Len(t, got, 26)
		require.Equal(t, got, rec.Header().Get(slogx.RequestIDHeader))
	}

	// lowercase ULIDs are accepted in canonical form
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(slogx.RequestIDHeader, strings.ToLower(inboundID))
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, inboundID, got)
}

func TestRequestIDPropagation(t *testing.T) {
	var got string
	h := slogx.HTTPMiddleware(slogx.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = slogx.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(slogx.RequestIDHeader, inboundID)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, inboundID, got)

	_, ok := slogx.RequestIDFromContext(context.Background())
	require.False(t, ok)
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := slogx.With(slogx.WithContext(context.Background(), base), "sub", "alice")
	slogx.FromContext(ctx).Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "alice", record["sub"])
}
