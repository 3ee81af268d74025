// Package app wires the CA, MITM engine, capture pipeline, capture store,
// event bus, and control plane into one coordinated process lifecycle: the
// control-plane listener and the shutdown path run under a single errgroup,
// and the proxy listener is served by Start and torn down by that shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/kanti-proxy/kanti/internal/ca"
	"github.com/kanti-proxy/kanti/internal/capture"
	"github.com/kanti-proxy/kanti/internal/config"
	"github.com/kanti-proxy/kanti/internal/controlplane"
	"github.com/kanti-proxy/kanti/internal/eventbus"
	"github.com/kanti-proxy/kanti/internal/metrics"
	"github.com/kanti-proxy/kanti/internal/mitm"
	"github.com/kanti-proxy/kanti/internal/store"
)

// ErrProxyAlreadyRunning is returned by Start when the proxy listener is
// already bound.
var ErrProxyAlreadyRunning = errors.New("proxy server already running")

// ErrProxyNotRunning is returned by Stop when the proxy listener is not
// currently bound.
var ErrProxyNotRunning = errors.New("proxy server not running")

// App is the top-level process: it owns every long-lived component and
// enforces single-writer semantics on start/stop/config-update.
type App struct {
	logger  hclog.Logger
	dataDir string
	ipcPort int

	cfgStore     *config.Store
	captureStore *store.Store
	bus          *eventbus.Bus
	root         *ca.RootCA
	leafs        *ca.LeafCache
	pipeline     *capture.Pipeline
	engine       *mitm.Engine
	controlSrv   *controlplane.Server

	mu            sync.Mutex
	running       bool
	proxyListener net.Listener
	proxyServer   *http.Server
}

// New constructs an App, loading or generating the CA root from dataDir.
func New(logger hclog.Logger, dataDir string, proxyPort, ipcPort int) (*App, error) {
	root, err := ca.LoadOrGenerate(dataDir)
	if err != nil {
		return nil, fmt.Errorf("loading certificate authority: %w", err)
	}

	cfg := config.Default(dataDir)
	cfg.Port = proxyPort
	cfgStore := config.NewStore(cfg)

	a := &App{
		logger:       logger,
		dataDir:      dataDir,
		ipcPort:      ipcPort,
		cfgStore:     cfgStore,
		captureStore: store.New(store.DefaultCapacity),
		bus:          eventbus.New(logger, eventbus.DefaultBatchSize, eventbus.DefaultBatchInterval),
		root:         root,
		leafs:        ca.NewLeafCache(root, logger, ca.DefaultLeafCacheCapacity),
	}

	sink := &combinedSink{store: a.captureStore, bus: a.bus}
	a.pipeline = capture.NewPipeline(logger, cfgStore, sink)
	a.engine = mitm.NewEngine(logger, a.leafs, cfgStore, a.pipeline)
	a.controlSrv = controlplane.NewServer(logger, a, a, a, a.bus)

	return a, nil
}

// Run starts the control plane and the proxy listener, and blocks until ctx
// is cancelled, at which point both are shut down gracefully and pending
// event-bus batches are flushed.
func (a *App) Run(ctx context.Context) error {
	controlListener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", a.ipcPort))
	if err != nil {
		return fmt.Errorf("binding control-plane listener: %w", err)
	}
	controlServer := &http.Server{Handler: a.controlSrv}

	if err := a.Start(0); err != nil {
		controlListener.Close()
		return fmt.Errorf("starting proxy listener: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := controlServer.Serve(controlListener); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("control-plane server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		return a.shutdown(controlServer)
	})

	return group.Wait()
}

func (a *App) shutdown(controlServer *http.Server) error {
	var result *multierror.Error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Stop(); err != nil && !errors.Is(err, ErrProxyNotRunning) {
		result = multierror.Append(result, fmt.Errorf("stopping proxy listener: %w", err))
	}
	if err := controlServer.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("stopping control-plane listener: %w", err))
	}
	a.bus.Stop()

	return result.ErrorOrNil()
}

// Start implements controlplane.ProxyController: it binds the proxy
// listener if not already running. A positive port overrides the
// configured port for this (and subsequent) starts; zero keeps the
// currently configured port.
func (a *App) Start(port int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return ErrProxyAlreadyRunning
	}

	if port > 0 {
		if _, err := a.cfgStore.Merge(map[string]interface{}{"port": port}); err != nil {
			return err
		}
	}

	boundPort := a.cfgStore.Get().Port
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", boundPort))
	if err != nil {
		return fmt.Errorf("binding proxy listener on port %d: %w", boundPort, err)
	}

	server := &http.Server{Handler: a.engine}
	a.proxyListener = listener
	a.proxyServer = server
	a.running = true

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			a.logger.Error("proxy listener exited", "error", err)
		}
	}()

	return nil
}

// Stop implements controlplane.ProxyController: it stops accepting new
// connections on the proxy listener, leaving the control plane running.
func (a *App) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return ErrProxyNotRunning
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.proxyServer.Shutdown(shutdownCtx)
	a.running = false
	a.proxyServer = nil
	a.proxyListener = nil
	return err
}

// Status implements controlplane.ProxyController.
func (a *App) Status() config.ProxyStatus {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()

	cfg := a.cfgStore.Get()
	return config.ProxyStatus{
		IsRunning:         running,
		Port:              cfg.Port,
		CACertificatePath: a.root.CertPath,
	}
}

// GetConfig implements controlplane.ConfigController.
func (a *App) GetConfig() config.ProxyConfig {
	return a.cfgStore.Get()
}

// UpdateConfig implements controlplane.ConfigController.
func (a *App) UpdateConfig(partial map[string]interface{}) (config.ProxyConfig, error) {
	return a.cfgStore.Merge(partial)
}

// Requests implements controlplane.RequestsController.
func (a *App) Requests() []capture.RequestDetails {
	return a.captureStore.Snapshot()
}

// Clear implements controlplane.RequestsController.
func (a *App) Clear() {
	a.captureStore.Clear()
}

// init sets the process-wide gauges (capture store size, active observers,
// leaf cache size) to zero so the first scrape of /metrics reports zero
// values rather than absent series.
func init() {
	metrics.Registry.SetGauge(metrics.CaptureStoreSize, 0)
	metrics.Registry.SetGauge(metrics.ObserversActive, 0)
	metrics.Registry.SetGauge(metrics.LeafCacheSize, 0)
}
