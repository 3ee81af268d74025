package ca

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/kanti-proxy/kanti/internal/metrics"
)

const (
	leafKeyBits  = 2048
	leafValidFor = 365 * 24 * time.Hour

	// DefaultLeafCacheCapacity is the point at which the cache performs a
	// bulk half-flush eviction.
	DefaultLeafCacheCapacity = 100
)

// entry pairs an issued leaf with its insertion order, used only to decide
// which half of the cache is older at eviction time.
type entry struct {
	cert  *tls.Certificate
	order uint64
}

// LeafCache issues and caches per-domain leaf certificates signed by a
// RootCA. Eviction is a bulk half-flush rather than LRU: a plain
// mutex-guarded map over a fancier structure.
type LeafCache struct {
	root     *RootCA
	logger   hclog.Logger
	capacity int

	mu      sync.Mutex
	entries map[string]entry
	counter uint64
}

func NewLeafCache(root *RootCA, logger hclog.Logger, capacity int) *LeafCache {
	if capacity <= 0 {
		capacity = DefaultLeafCacheCapacity
	}
	return &LeafCache{
		root:     root,
		logger:   logger.Named("ca"),
		capacity: capacity,
		entries:  make(map[string]entry),
	}
}

// LeafFor returns a cached or freshly issued leaf certificate for domain,
// signed by the root CA with SAN=domain.
func (c *LeafCache) LeafFor(domain string) (*tls.Certificate, error) {
	c.mu.Lock()
	if e, ok := c.entries[domain]; ok {
		c.mu.Unlock()
		return e.cert, nil
	}
	c.mu.Unlock()

	cert, err := c.issue(domain)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[domain]; ok {
		return e.cert, nil
	}

	if len(c.entries) >= c.capacity {
		c.evictOldestHalf()
	}
	c.counter++
	c.entries[domain] = entry{cert: cert, order: c.counter}
	metrics.Registry.SetGauge(metrics.LeafCacheSize, float32(len(c.entries)))

	return cert, nil
}

// evictOldestHalf drops the oldest half of cached entries by insertion
// order. Callers must hold c.mu.
func (c *LeafCache) evictOldestHalf() {
	target := len(c.entries) / 2
	if target == 0 {
		return
	}

	type keyOrder struct {
		key   string
		order uint64
	}
	all := make([]keyOrder, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, keyOrder{k, e.order})
	}
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].order < all[j-1].order; j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}

	for i := 0; i < target; i++ {
		delete(c.entries, all[i].key)
	}
	metrics.Registry.IncrCounter(metrics.LeafCacheEvictions, float32(target))
	c.logger.Debug("evicted oldest half of leaf cache", "count", target)
}

func (c *LeafCache) issue(domain string) (*tls.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, leafKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generating leaf key for %s: %w", domain, err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: domain},
		DNSNames:     []string{domain},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(leafValidFor),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, template, c.root.Cert, &key.PublicKey, c.root.Key)
	if err != nil {
		return nil, fmt.Errorf("signing leaf certificate for %s: %w", domain, err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{derBytes, c.root.Cert.Raw},
		PrivateKey:  key,
	}, nil
}
