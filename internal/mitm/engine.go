// Package mitm implements the interception engine: accepting CONNECT tunnels,
// terminating TLS against the client with a cache-issued leaf certificate,
// opening an independent TLS connection to the real upstream, and handing
// the resulting plaintext HTTP traffic to the capture pipeline. Plain HTTP
// requests are forwarded directly without a CONNECT handshake.
package mitm

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/kanti-proxy/kanti/internal/capture"
	"github.com/kanti-proxy/kanti/internal/config"
)

// minTLSVersion is the floor enforced on both the client-facing and
// upstream-facing TLS connections.
const minTLSVersion = tls.VersionTLS12

// ConfigProvider mirrors capture.ConfigProvider; the mitm Engine needs the
// same live sslInterception flag.
type ConfigProvider interface {
	Get() config.ProxyConfig
}

//go:generate mockgen -destination ../mocks/mock_leafissuer.go -package mocks github.com/kanti-proxy/kanti/internal/mitm LeafIssuer

// LeafIssuer is the certificate-issuance dependency of Engine, satisfied by
// *ca.LeafCache. A narrow interface lets tests substitute a mock issuer
// instead of generating real RSA keys.
type LeafIssuer interface {
	LeafFor(domain string) (*tls.Certificate, error)
}

// Engine is the http.Handler mounted on the proxy listener: it dispatches
// CONNECT requests into the interception path and forwards everything else
// as plain HTTP.
type Engine struct {
	logger   hclog.Logger
	leafs    LeafIssuer
	cfg      ConfigProvider
	pipeline *capture.Pipeline
}

func NewEngine(logger hclog.Logger, leafs LeafIssuer, cfg ConfigProvider, pipeline *capture.Pipeline) *Engine {
	return &Engine{
		logger:   logger.Named("mitm"),
		leafs:    leafs,
		cfg:      cfg,
		pipeline: pipeline,
	}
}

func (e *Engine) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodConnect {
		e.handleConnect(w, req)
		return
	}
	e.pipeline.Handle(req.Context(), w, req, capture.ProtocolHTTP, req.Host)
}

// handleConnect never captures the CONNECT tunnel itself as an exchange; it
// is either terminated and intercepted (when sslInterception is enabled) or
// relayed as an opaque byte tunnel.
func (e *Engine) handleConnect(w http.ResponseWriter, req *http.Request) {
	host := req.URL.Host
	if host == "" {
		host = req.Host
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		e.logger.Error("failed to hijack client connection", "error", err)
		return
	}
	defer clientConn.Close()

	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		e.logger.Error("failed writing CONNECT response", "error", err)
		return
	}

	if !e.cfg.Get().SSLInterception {
		e.tunnel(clientConn, host)
		return
	}

	e.intercept(clientConn, host)
}

// tunnel relays raw bytes between the client and the real upstream without
// decrypting anything.
func (e *Engine) tunnel(clientConn net.Conn, host string) {
	hostPort := ensurePort(host, "443")
	upstream, err := net.DialTimeout("tcp", hostPort, 30*time.Second)
	if err != nil {
		e.logger.Debug("tunnel dial failed", "host", host, "error", err)
		return
	}
	defer upstream.Close()

	relay(clientConn, upstream)
}

// intercept terminates TLS against the client with a leaf certificate for
// host, opens an independent TLS connection upstream with SNI=host, and
// serves decrypted HTTP traffic from the client connection through the
// capture pipeline.
func (e *Engine) intercept(clientConn net.Conn, host string) {
	leaf, err := e.leafs.LeafFor(hostOnly(host))
	if err != nil {
		e.logger.Error("failed to issue leaf certificate", "host", host, "error", err)
		return
	}

	tlsClientConn := tls.Server(clientConn, &tls.Config{
		Certificates: []tls.Certificate{*leaf},
		MinVersion:   minTLSVersion,
	})
	if err := tlsClientConn.Handshake(); err != nil {
		e.logger.Debug("client TLS handshake failed", "host", host, "error", err)
		return
	}
	defer tlsClientConn.Close()

	// The upstream leg (host, SNI=host, min TLS 1.2) is dialed by the
	// capture pipeline's own RoundTripper, which performs the TLS handshake
	// itself for https-scheme requests — no separate transport needed here.
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			e.pipeline.Handle(r.Context(), w, r, capture.ProtocolHTTPS, hostOnly(host))
		}),
	}

	listener := newSingleConnListener(tlsClientConn)
	_ = server.Serve(listener)
}

func relay(a, b net.Conn) {
	done := make(chan struct{}, 2)
	go func() {
		copyConn(a, b)
		done <- struct{}{}
	}()
	go func() {
		copyConn(b, a)
		done <- struct{}{}
	}()
	<-done
}

func copyConn(dst, src net.Conn) {
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func ensurePort(host, defaultPort string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, defaultPort)
}

func hostOnly(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// singleConnListener adapts one already-accepted net.Conn into a
// net.Listener so http.Server can serve a single hijacked TLS connection
// through its normal request/response machinery.
type singleConnListener struct {
	conn   net.Conn
	served bool
	closed chan struct{}
}

func newSingleConnListener(conn net.Conn) *singleConnListener {
	return &singleConnListener{conn: conn, closed: make(chan struct{})}
}

func (l *singleConnListener) Accept() (net.Conn, error) {
	if l.served {
		<-l.closed
		return nil, fmt.Errorf("mitm: connection already served")
	}
	l.served = true
	return l.conn, nil
}

func (l *singleConnListener) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return nil
}

func (l *singleConnListener) Addr() net.Addr { return l.conn.LocalAddr() }
