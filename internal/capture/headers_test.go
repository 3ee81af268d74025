package capture_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kanti-proxy/kanti/internal/capture"
)

func TestSanitizeStripsProxyAndForwardingHeaders(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	req.Header.Set("Proxy-Authorization", "Basic xyz")
	req.Header.Set("Proxy-Connection", "keep-alive")

	capture.Sanitize(req, nil)

	require.Empty(t, req.Header.Get("X-Forwarded-For"))
	require.Empty(t, req.Header.Get("Proxy-Authorization"))
	require.Empty(t, req.Header.Get("Proxy-Connection"))
}

func TestSanitizeAppliesBrowserDefaultsOnlyWhenAbsent(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	req.Header.Set("User-Agent", "my-custom-agent")

	capture.Sanitize(req, nil)

	require.Equal(t, "my-custom-agent", req.Header.Get("User-Agent"))
	require.NotEmpty(t, req.Header.Get("Accept"))
}

func TestSanitizeCustomHeadersWinOverDefaults(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)

	capture.Sanitize(req, map[string]string{"User-Agent": "kanti-custom"})

	require.Equal(t, "kanti-custom", req.Header.Get("User-Agent"))
}
