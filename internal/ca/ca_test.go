package ca_test

import (
	"crypto/tls"
	"crypto/x509"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/kanti-proxy/kanti/internal/ca"
)

func TestLoadOrGenerateCreatesRootOnFirstCall(t *testing.T) {
	dir := t.TempDir()

	root, err := ca.LoadOrGenerate(dir)
	require.NoError(t, err)
	require.True(t, root.Cert.IsCA)
	require.Equal(t, "Kanti CA", root.Cert.Subject.CommonName)
	require.FileExists(t, filepath.Join(dir, "certificates", "ca.crt"))
	require.FileExists(t, filepath.Join(dir, "certificates", "ca.key"))
}

func TestLoadOrGenerateIsStableAcrossCalls(t *testing.T) {
	dir := t.TempDir()

	first, err := ca.LoadOrGenerate(dir)
	require.NoError(t, err)

	second, err := ca.LoadOrGenerate(dir)
	require.NoError(t, err)

	require.Equal(t, first.Cert.Raw, second.Cert.Raw)
}

func TestLeafForIssuesCertSignedByRoot(t *testing.T) {
	dir := t.TempDir()
	root, err := ca.LoadOrGenerate(dir)
	require.NoError(t, err)

	cache := ca.NewLeafCache(root, hclog.NewNullLogger(), 10)
	leaf, err := cache.LeafFor("example.test")
	require.NoError(t, err)

	leafCert, err := x509.ParseCertificate(leaf.Certificate[0])
	require.NoError(t, err)
	require.Equal(t, []string{"example.test"}, leafCert.DNSNames)
	require.NoError(t, leafCert.CheckSignatureFrom(root.Cert))
}

func TestLeafForReturnsCachedCertOnSecondCall(t *testing.T) {
	dir := t.TempDir()
	root, err := ca.LoadOrGenerate(dir)
	require.NoError(t, err)

	cache := ca.NewLeafCache(root, hclog.NewNullLogger(), 10)
	first, err := cache.LeafFor("example.test")
	require.NoError(t, err)
	second, err := cache.LeafFor("example.test")
	require.NoError(t, err)

	require.Same(t, first, second)
}

func TestLeafCacheEvictsOldestHalfAtCapacity(t *testing.T) {
	dir := t.TempDir()
	root, err := ca.LoadOrGenerate(dir)
	require.NoError(t, err)

	cache := ca.NewLeafCache(root, hclog.NewNullLogger(), 4)
	domains := []string{"a.test", "b.test", "c.test", "d.test"}
	for _, d := range domains {
		_, err := cache.LeafFor(d)
		require.NoError(t, err)
	}

	first, err := cache.LeafFor("a.test")
	require.NoError(t, err)

	_, err = cache.LeafFor("e.test")
	require.NoError(t, err)

	second, err := cache.LeafFor("a.test")
	require.NoError(t, err)
	require.NotSame(t, first, second, "expected a.test to have been evicted and re-issued")
}

func TestLeafForConcurrentFirstRequestsShareOneCertificate(t *testing.T) {
	dir := t.TempDir()
	root, err := ca.LoadOrGenerate(dir)
	require.NoError(t, err)

	cache := ca.NewLeafCache(root, hclog.NewNullLogger(), 10)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*tls.Certificate, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cert, err := cache.LeafFor("race.test")
			require.NoError(t, err)
			results[i] = cert
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		require.Same(t, results[0], results[i], "concurrent first-time callers must observe the same cached certificate")
	}
}
