// Package ca implements certificate authority root management and leaf
// certificate issuance: a self-signed root persisted to disk, and a
// bounded per-domain leaf cache used by the MITM engine to terminate TLS.
package ca

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

const (
	rootKeyBits    = 2048
	rootValidFor   = 10 * 365 * 24 * time.Hour
	rootCommonName = "Kanti CA"

	rootCertFileMode = 0o644
	rootKeyFileMode  = 0o600
	rootDirFileMode  = 0o700
)

// RootCA holds the long-lived CA keypair used to sign leaf certificates.
type RootCA struct {
	Cert    *x509.Certificate
	Key     *rsa.PrivateKey
	CertPEM []byte

	// CertPath is the on-disk location of the PEM-encoded root certificate,
	// surfaced as ProxyStatus.caCertificatePath.
	CertPath string
}

// LoadOrGenerate loads a root CA from <dataDir>/certificates, generating and
// persisting a new 2048-bit self-signed root if ca.crt or ca.key does not
// exist. Existing files that cannot be read or parsed are reported as an
// error.
func LoadOrGenerate(dataDir string) (*RootCA, error) {
	certDir := filepath.Join(dataDir, "certificates")
	if err := os.MkdirAll(certDir, rootDirFileMode); err != nil {
		return nil, fmt.Errorf("creating certificate directory: %w", err)
	}

	certPath := filepath.Join(certDir, "ca.crt")
	keyPath := filepath.Join(certDir, "ca.key")

	root, err := loadExisting(certPath, keyPath)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading root CA: %w", err)
	}

	return generate(certPath, keyPath)
}

func loadExisting(certPath, keyPath string) (*RootCA, error) {
	certPEMBytes, err := os.ReadFile(certPath)
	if err != nil {
		return nil, err
	}
	keyPEMBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	certBlock, _ := pem.Decode(certPEMBytes)
	if certBlock == nil {
		return nil, fmt.Errorf("ca.crt does not contain a PEM certificate")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing root certificate: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEMBytes)
	if keyBlock == nil {
		return nil, fmt.Errorf("ca.key does not contain a PEM key")
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing root key: %w", err)
	}

	return &RootCA{Cert: cert, Key: key, CertPEM: certPEMBytes, CertPath: certPath}, nil
}

func generate(certPath, keyPath string) (*RootCA, error) {
	key, err := rsa.GenerateKey(rand.Reader, rootKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generating root key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: rootCommonName,
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(rootValidFor),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("creating root certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(derBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing generated root certificate: %w", err)
	}

	certPEMBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	keyPEMBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	if err := os.WriteFile(certPath, certPEMBytes, rootCertFileMode); err != nil {
		return nil, fmt.Errorf("writing root certificate: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEMBytes, rootKeyFileMode); err != nil {
		return nil, fmt.Errorf("writing root key: %w", err)
	}

	return &RootCA{Cert: cert, Key: key, CertPEM: certPEMBytes, CertPath: certPath}, nil
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("generating serial number: %w", err)
	}
	return serial, nil
}
