package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	github_prov "github.com/simplesurance/mergeguard/internal/provider/github"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func webhookStub(t *testing.T, called *int) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		*called++
		assert.Equal(t, http.MethodPost, req.Method)
		github_prov.WriteResponse(resp, http.StatusAccepted, "")
	})
}

func decodeResponse(t *testing.T, body io.Reader) *github_prov.Response {
	t.Helper()

	var r github_prov.Response
	require.NoError(t, json.NewDecoder(body).Decode(&r))
	return &r
}

func TestHealthz(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	var called int
	srv := New(Config{}, webhookStub(t, &called))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthzEndpoint, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	r := decodeResponse(t, rec.Body)
	assert.Equal(t, github_prov.StatusOK, r.Status)
	assert.Equal(t, "Server is running fine", r.Message)
	assert.Zero(t, called)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	var called int
	srv := New(Config{}, webhookStub(t, &called))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, MetricsEndpoint, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestWebhookIsRoutedToConfiguredEndpoint(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	var called int
	srv := New(Config{WebhookEndpoint: "/events"}, webhookStub(t, &called))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("{}")))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, called)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, DefaultWebhookEndpoint, strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, called)
}

func TestStatusRecorderKeepsCode(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	sr.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, sr.status)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestStartFailsWithoutListenAddr(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	srv := New(Config{}, http.NotFoundHandler())
	require.Error(t, srv.Start())
}

func TestStartFailsOnMissingCertificate(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	srv := New(Config{
		HTTPSListenAddr: "127.0.0.1:0",
		HTTPSCertFile:   "/nonexistent/cert.pem",
		HTTPSKeyFile:    "/nonexistent/key.pem",
	}, http.NotFoundHandler())
	require.Error(t, srv.Start())
}

func TestStartAndShutdown(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t)))

	var called int
	srv := New(Config{HTTPListenAddr: "127.0.0.1:0"}, webhookStub(t, &called))
	require.NoError(t, srv.Start())
	require.Len(t, srv.servers, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
