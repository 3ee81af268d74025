package mitm_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/kanti-proxy/kanti/internal/capture"
	"github.com/kanti-proxy/kanti/internal/config"
	"github.com/kanti-proxy/kanti/internal/mitm"
)

type fakeConfig struct {
	mu  sync.Mutex
	cfg config.ProxyConfig
}

func (f *fakeConfig) Get() config.ProxyConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

type recordingSink struct {
	mu        sync.Mutex
	requests  []capture.RequestDetails
	responses []capture.RequestDetails
}

func (s *recordingSink) OnRequestEmitted(r capture.RequestDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)
}

func (s *recordingSink) OnResponseEmitted(r capture.RequestDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
}

func TestEngineForwardsPlainHTTPAndCaptures(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello from upstream"))
	}))
	defer upstream.Close()

	cfgProvider := &fakeConfig{cfg: config.Default(t.TempDir())}
	sink := &recordingSink{}
	pipeline := capture.NewPipeline(hclog.NewNullLogger(), cfgProvider, sink)
	engine := mitm.NewEngine(hclog.NewNullLogger(), nil, cfgProvider, pipeline)

	req := httptest.NewRequest(http.MethodGet, "http://"+upstream.Listener.Addr().String()+"/hello", nil)
	req.Host = upstream.Listener.Addr().String()
	rec := httptest.NewRecorder()

	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello from upstream", rec.Body.String())

	require.Len(t, sink.requests, 1)
	require.Len(t, sink.responses, 1)
	require.Equal(t, http.StatusOK, sink.responses[0].Status)
	require.True(t, strings.HasPrefix(sink.requests[0].Path, "/hello"))
}
