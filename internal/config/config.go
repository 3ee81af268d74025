// Package config defines the proxy's mutable configuration and status
// projections (ProxyConfig, ProxyStatus) and the partial-update merge used
// by the control plane.
package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/mitchellh/mapstructure"
)

const (
	DefaultProxyPort = 8080
	DefaultIPCPort   = 9090
)

// ProxyConfig is the mutable configuration surface of the proxy.
type ProxyConfig struct {
	Port             int               `json:"port" mapstructure:"port"`
	SSLInterception  bool              `json:"sslInterception" mapstructure:"sslInterception"`
	CustomHeaders    map[string]string `json:"customHeaders" mapstructure:"customHeaders"`
	SaveOnlyInScope  bool              `json:"saveOnlyInScope" mapstructure:"saveOnlyInScope"`
	InScope          []string          `json:"inScope" mapstructure:"inScope"`
	OutOfScope       []string          `json:"outOfScope" mapstructure:"outOfScope"`
	CACertificatePath string           `json:"caCertificatePath" mapstructure:"-"`
}

// ProxyStatus is a read-only projection of proxy and CA state.
type ProxyStatus struct {
	IsRunning         bool   `json:"isRunning"`
	Port              int    `json:"port"`
	CACertificatePath string `json:"caCertificatePath"`
}

// Default returns the default configuration, matching the CLI flag
// defaults.
func Default(dataDir string) ProxyConfig {
	return ProxyConfig{
		Port:              DefaultProxyPort,
		SSLInterception:   true,
		CustomHeaders:     map[string]string{},
		SaveOnlyInScope:   false,
		InScope:           nil,
		OutOfScope:        nil,
		CACertificatePath: filepath.Join(dataDir, "certificates", "ca.crt"),
	}
}

// Validate enforces port range, non-empty scope patterns, and valid header
// field-names.
func (c ProxyConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1..65535", c.Port)
	}
	for _, pattern := range append(append([]string{}, c.InScope...), c.OutOfScope...) {
		if pattern == "" {
			return fmt.Errorf("scope pattern must not be empty")
		}
	}
	for name := range c.CustomHeaders {
		if !isValidHeaderName(name) {
			return fmt.Errorf("invalid custom header name %q", name)
		}
	}
	return nil
}

func isValidHeaderName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// Store holds the live ProxyConfig under a lock, supporting read, full
// replace, and the partial-update merge used by POST /api/proxy/config.
type Store struct {
	mu  sync.RWMutex
	cfg ProxyConfig
}

func NewStore(initial ProxyConfig) *Store {
	return &Store{cfg: initial}
}

func (s *Store) Get() ProxyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Store) Replace(cfg ProxyConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Merge decodes a partial JSON-decoded map onto the current config with
// mapstructure, loosely onto a struct, with unrecognized fields ignored.
func (s *Store) Merge(partial map[string]interface{}) (ProxyConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The decoder writes into existing maps and slices in place, so the
	// candidate gets its own copies to keep a rejected update off s.cfg.
	candidate := s.cfg
	candidate.CustomHeaders = make(map[string]string, len(s.cfg.CustomHeaders))
	for name, value := range s.cfg.CustomHeaders {
		candidate.CustomHeaders[name] = value
	}
	candidate.InScope = append([]string(nil), s.cfg.InScope...)
	candidate.OutOfScope = append([]string(nil), s.cfg.OutOfScope...)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: false,
		Result:      &candidate,
	})
	if err != nil {
		return ProxyConfig{}, err
	}
	if err := decoder.Decode(partial); err != nil {
		return ProxyConfig{}, err
	}
	if err := candidate.Validate(); err != nil {
		return ProxyConfig{}, err
	}
	s.cfg = candidate
	return s.cfg, nil
}
