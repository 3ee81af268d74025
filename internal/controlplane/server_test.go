package controlplane_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/kanti-proxy/kanti/internal/app"
	"github.com/kanti-proxy/kanti/internal/capture"
	"github.com/kanti-proxy/kanti/internal/config"
	"github.com/kanti-proxy/kanti/internal/controlplane"
	"github.com/kanti-proxy/kanti/internal/eventbus"
)

type fakeProxy struct {
	startErr   error
	stopErr    error
	status     config.ProxyStatus
	lastPort   int
	startCalls int
}

func (f *fakeProxy) Start(port int) error {
	f.startCalls++
	f.lastPort = port
	return f.startErr
}
func (f *fakeProxy) Stop() error                { return f.stopErr }
func (f *fakeProxy) Status() config.ProxyStatus { return f.status }

type fakeConfigController struct {
	store *config.Store
}

func (f *fakeConfigController) GetConfig() config.ProxyConfig { return f.store.Get() }
func (f *fakeConfigController) UpdateConfig(partial map[string]interface{}) (config.ProxyConfig, error) {
	return f.store.Merge(partial)
}

type fakeRequests struct {
	items []capture.RequestDetails
}

func (f *fakeRequests) Requests() []capture.RequestDetails { return f.items }
func (f *fakeRequests) Clear()                              { f.items = nil }

type fakeEvents struct {
	batches []eventbus.Batch
}

func (f fakeEvents) Subscribe() (string, <-chan eventbus.Batch) {
	ch := make(chan eventbus.Batch, len(f.batches))
	for _, b := range f.batches {
		ch <- b
	}
	close(ch)
	return "fake", ch
}
func (fakeEvents) Unsubscribe(id string) {}

func newTestServer(t *testing.T) *controlplane.Server {
	store := config.NewStore(config.Default(t.TempDir()))
	return controlplane.NewServer(
		hclog.NewNullLogger(),
		&fakeProxy{status: config.ProxyStatus{IsRunning: true, Port: 8080}},
		&fakeConfigController{store: store},
		&fakeRequests{items: []capture.RequestDetails{{ID: 1, Host: "a.test"}}},
		fakeEvents{},
	)
}

func decodeEnvelope(t *testing.T, body []byte) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestStatusRoute(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/proxy/status", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec.Body.Bytes())
	require.Equal(t, true, env["success"])
}

func TestRequestsRoute(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/proxy/requests", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec.Body.Bytes())
	data, ok := env["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 1)
}

func TestUpdateConfigMergesPartialBody(t *testing.T) {
	srv := newTestServer(t)
	body := bytes.NewBufferString(`{"saveOnlyInScope": true, "unknownField": "ignored"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/proxy/config", body)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec.Body.Bytes())
	data := env["data"].(map[string]interface{})
	require.Equal(t, true, data["saveOnlyInScope"])
}

func TestUpdateConfigRejectsInvalidValue(t *testing.T) {
	srv := newTestServer(t)
	body := bytes.NewBufferString(`{"port": -1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/proxy/config", body)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec.Body.Bytes())
	require.Equal(t, false, env["success"])
}

func TestClearRoute(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/proxy/clear", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStartRoutePassesPortFromBody(t *testing.T) {
	proxy := &fakeProxy{status: config.ProxyStatus{IsRunning: true, Port: 9001}}
	srv := controlplane.NewServer(
		hclog.NewNullLogger(),
		proxy,
		&fakeConfigController{store: config.NewStore(config.Default(t.TempDir()))},
		&fakeRequests{},
		fakeEvents{},
	)

	body := bytes.NewBufferString(`{"port": 9001}`)
	req := httptest.NewRequest(http.MethodPost, "/api/proxy/start", body)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, proxy.startCalls)
	require.Equal(t, 9001, proxy.lastPort)
}

func TestStartRouteWithoutBodyDefaultsPortToZero(t *testing.T) {
	proxy := &fakeProxy{status: config.ProxyStatus{IsRunning: true, Port: 8080}}
	srv := controlplane.NewServer(
		hclog.NewNullLogger(),
		proxy,
		&fakeConfigController{store: config.NewStore(config.Default(t.TempDir()))},
		&fakeRequests{},
		fakeEvents{},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/proxy/start", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, proxy.startCalls)
	require.Equal(t, 0, proxy.lastPort)
}

func TestStartRouteSurfacesAlreadyRunningError(t *testing.T) {
	proxy := &fakeProxy{startErr: app.ErrProxyAlreadyRunning}
	srv := controlplane.NewServer(
		hclog.NewNullLogger(),
		proxy,
		&fakeConfigController{store: config.NewStore(config.Default(t.TempDir()))},
		&fakeRequests{},
		fakeEvents{},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/proxy/start", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec.Body.Bytes())
	require.Equal(t, false, env["success"])
	require.Equal(t, "proxy server already running", env["error"])
}

func TestStopRouteSurfacesNotRunningError(t *testing.T) {
	proxy := &fakeProxy{stopErr: app.ErrProxyNotRunning}
	srv := controlplane.NewServer(
		hclog.NewNullLogger(),
		proxy,
		&fakeConfigController{store: config.NewStore(config.Default(t.TempDir()))},
		&fakeRequests{},
		fakeEvents{},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/proxy/stop", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec.Body.Bytes())
	require.Equal(t, false, env["success"])
	require.Equal(t, "proxy server not running", env["error"])
}

func TestEventsRouteStreamsEnvelopeWithTypeAndData(t *testing.T) {
	batch := eventbus.Batch{
		Type:  eventbus.BatchTypeRequest,
		Items: []capture.RequestDetails{{ID: 1, Host: "a.test"}},
	}
	srv := controlplane.NewServer(
		hclog.NewNullLogger(),
		&fakeProxy{},
		&fakeConfigController{store: config.NewStore(config.Default(t.TempDir()))},
		&fakeRequests{},
		fakeEvents{batches: []eventbus.Batch{batch}},
	)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	raw := rec.Body.String()
	require.NotContains(t, raw, "event:")
	require.NotContains(t, raw, "id:")

	const prefix = "data: "
	require.True(t, strings.HasPrefix(raw, prefix))
	payload := strings.TrimSuffix(strings.TrimPrefix(raw, prefix), "\n\n")

	var envelope struct {
		Type string                   `json:"type"`
		Data []capture.RequestDetails `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(payload), &envelope))
	require.Equal(t, "proxy-request-batch", envelope.Type)
	require.Len(t, envelope.Data, 1)
	require.Equal(t, int64(1), envelope.Data[0].ID)
}
