package capture

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/kanti-proxy/kanti/internal/config"
	"github.com/kanti-proxy/kanti/internal/metrics"
)

// upstreamDialTimeout bounds the upstream connect; there is no per-exchange
// total timeout, so only the dial itself is bounded.
const upstreamDialTimeout = 30 * time.Second

//go:generate mockgen -destination ../mocks/mock_sink.go -package mocks github.com/kanti-proxy/kanti/internal/capture Sink

// Sink receives completed capture events, modeling `onRequest`/`onResponse`
// handlers as a small injected capability set rather than virtual dispatch.
type Sink interface {
	OnRequestEmitted(RequestDetails)
	OnResponseEmitted(RequestDetails)
}

// ConfigProvider is the live-configuration dependency of the Pipeline,
// satisfied by *config.Store. A narrow interface keeps the pipeline
// testable without constructing a full Store.
type ConfigProvider interface {
	Get() config.ProxyConfig
}

// Pipeline implements the capture pipeline: it assigns monotonic ids,
// sanitizes and forwards requests, captures and decompresses responses, and
// emits scope-filtered records to a Sink.
type Pipeline struct {
	logger   hclog.Logger
	cfg      ConfigProvider
	sink     Sink
	nextID   int64
	maxBody  int
	rt       http.RoundTripper
}

func NewPipeline(logger hclog.Logger, cfg ConfigProvider, sink Sink) *Pipeline {
	return &Pipeline{
		logger:  logger.Named("capture"),
		cfg:     cfg,
		sink:    sink,
		maxBody: MaxBodyBytes,
		rt: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: upstreamDialTimeout,
			}).DialContext,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			Proxy:               nil,
			ForceAttemptHTTP2:   false,
			MaxIdleConnsPerHost: 8,
		},
	}
}

// Handle forwards one HTTP exchange upstream and captures it. protocol is
// "http" or "https"; host is the authoritative destination host — the
// CONNECT target for MITM'd traffic, or the plain-HTTP Host header
// otherwise — since the two can diverge from req.Host once headers are
// sanitized.
func (p *Pipeline) Handle(ctx context.Context, w http.ResponseWriter, req *http.Request, protocol, host string) {
	id := atomic.AddInt64(&p.nextID, 1)
	startTime := time.Now()

	reqBody, _ := ReadCapped(req.Body, p.maxBody)
	req.Body.Close()

	record := RequestDetails{
		ID:          id,
		Host:        host,
		Method:      req.Method,
		Path:        req.URL.Path,
		Query:       req.URL.RawQuery,
		Headers:     cloneHeaders(map[string][]string(req.Header)),
		Timestamp:   startTime,
		Protocol:    protocol,
		RequestBody: reqBody,
	}

	cfg := p.cfg.Get()
	Sanitize(req, cfg.CustomHeaders)
	record.Headers = cloneHeaders(map[string][]string(req.Header))

	if InScope(host, cfg.SaveOnlyInScope, cfg.InScope, cfg.OutOfScope) {
		metrics.Registry.IncrCounter(metrics.ExchangesCaptured, 1)
		p.sink.OnRequestEmitted(record.Clone())
	} else {
		metrics.Registry.IncrCounter(metrics.ExchangesDropped, 1)
	}

	req.Body = io.NopCloser(bytes.NewReader(reqBody))
	req.ContentLength = int64(len(reqBody))
	req.RequestURI = ""
	req.URL.Scheme = protocol
	req.URL.Host = host

	resp, err := p.rt.RoundTrip(req.WithContext(ctx))
	if err != nil {
		p.emitError(record, startTime, categorizeError(err))
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	rawBody, _ := ReadCapped(resp.Body, p.maxBody)
	contentType := resp.Header.Get("Content-Type")
	contentEncoding := resp.Header.Get("Content-Encoding")

	var capturedBody []byte
	if IsTextualContentType(contentType) {
		if decoded, ok := Decompress(contentEncoding, rawBody); ok {
			capturedBody = decoded
		}
	}

	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(rawBody)

	responseTimeMs := time.Since(startTime).Milliseconds()
	completed := record.WithResponse(resp.StatusCode, cloneHeaders(map[string][]string(resp.Header)), capturedBody, int64(len(rawBody)), responseTimeMs, "")

	cfgNow := p.cfg.Get()
	if InScope(host, cfgNow.SaveOnlyInScope, cfgNow.InScope, cfgNow.OutOfScope) {
		p.sink.OnResponseEmitted(completed.Clone())
	}
}

func (p *Pipeline) emitError(record RequestDetails, startTime time.Time, category string) {
	cfg := p.cfg.Get()
	if !InScope(record.Host, cfg.SaveOnlyInScope, cfg.InScope, cfg.OutOfScope) {
		return
	}
	completed := record.WithResponse(0, nil, nil, 0, time.Since(startTime).Milliseconds(), category)
	p.sink.OnResponseEmitted(completed.Clone())
}

// categorizeError maps a forwarding failure to the short category string
// stored in RequestDetails.Error.
func categorizeError(err error) string {
	if err == nil {
		return ""
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return "timeout"
	}
	return "dial_error"
}
