// Package ca implements the Certificate Authority (C1): persisting or
// generating a root CA and minting short-lived per-host leaf certificates
// for the MITM proxy engine, grounded on original_source/proxy-core/src/ca.rs
// (rcgen there; crypto/x509 + crypto/ecdsa here, since rcgen has no Go
// equivalent and certificate generation is stdlib's own domain).
package ca

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

const (
	commonName   = "Proxxy CA"
	organization = "Proxxy Distributed MITM"

	rootValidity = 10 * 365 * 24 * time.Hour
	leafValidity = 365 * 24 * time.Hour
	leafBackdate = 24 * time.Hour
)

// CA is the root Certificate Authority. It is safe for concurrent use and
// is shared by reference between the proxy engine and the transport; it
// never mutates after construction.
type CA struct {
	cert    *x509.Certificate
	key     *ecdsa.PrivateKey
	certDER []byte
}

// New loads a CA from dir (ca.pem/ca.key) if present, or generates and
// persists a new one atomically otherwise.
func New(dir string) (*CA, error) {
	certPath := filepath.Join(dir, "ca.pem")
	keyPath := filepath.Join(dir, "ca.key")

	if _, err := os.Stat(certPath); err == nil {
		if _, err := os.Stat(keyPath); err == nil {
			return load(certPath, keyPath)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Config("create CA directory", err)
	}
	return generateAndSave(certPath, keyPath)
}

func load(certPath, keyPath string) (*CA, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, errors.Certificate("read CA certificate", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errors.Certificate("read CA key", err)
	}
	return FromPEM(certPEM, keyPEM)
}

// FromPEM reconstructs a CA from PEM-encoded certificate and key bytes.
func FromPEM(certPEM, keyPEM []byte) (*CA, error) {
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, errors.Certificate("decode CA certificate PEM", nil)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, errors.Certificate("parse CA certificate", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, errors.Certificate("decode CA key PEM", nil)
	}
	key, err := x509.ParseECPrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, errors.Certificate("parse CA key", err)
	}

	return &CA{cert: cert, key: key, certDER: certBlock.Bytes}, nil
}

func generateAndSave(certPath, keyPath string) (*CA, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Certificate("generate CA key", err)
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(rootValidity)
	serial, err := newSerial()
	if err != nil {
		return nil, errors.Certificate("generate CA serial", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{organization},
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, errors.Certificate("sign CA certificate", err)
	}

	certPEMBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, errors.Certificate("marshal CA key", err)
	}
	keyPEMBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})

	if err := writeAtomic(certPath, certPEMBytes); err != nil {
		return nil, errors.Config("persist CA certificate", err)
	}
	if err := writeAtomic(keyPath, keyPEMBytes); err != nil {
		return nil, errors.Config("persist CA key", err)
	}
	crtPath := certPath[:len(certPath)-len(filepath.Ext(certPath))] + ".crt"
	if err := writeAtomic(crtPath, certPEMBytes); err != nil {
		return nil, errors.Config("persist CA .crt mirror", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errors.Certificate("parse generated CA certificate", err)
	}

	return &CA{cert: cert, key: key, certDER: der}, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func newSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, limit)
}

// LeafCert is a minted per-host certificate and its private key, both PEM
// encoded.
type LeafCert struct {
	CertPEM []byte
	KeyPEM  []byte
}

// MintLeaf generates a short-lived certificate for host, signed by the
// root CA. Its SAN contains exactly the requested host.
func (c *CA) MintLeaf(host string) (*LeafCert, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Certificate("generate leaf key", err)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, errors.Certificate("generate leaf serial", err)
	}

	now := time.Now()
	notBefore := now.Add(-leafBackdate)
	notAfter := now.Add(leafValidity)

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: host},
		DNSNames:     []string{host},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, c.cert, &key.PublicKey, c.key)
	if err != nil {
		return nil, errors.Certificate("sign leaf certificate", err)
	}

	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, errors.Certificate("marshal leaf key", err)
	}

	return &LeafCert{
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}),
	}, nil
}

// CACertPEM returns the root certificate in PEM form.
func (c *CA) CACertPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c.certDER})
}

// CACertDER returns the root certificate in DER form.
func (c *CA) CACertDER() []byte {
	return c.certDER
}

// CAKeyPEM returns the root private key in PEM form.
func (c *CA) CAKeyPEM() ([]byte, error) {
	keyBytes, err := x509.MarshalECPrivateKey(c.key)
	if err != nil {
		return nil, errors.Certificate("marshal CA key", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}), nil
}

// CAKeyDER returns the root private key in DER form.
func (c *CA) CAKeyDER() ([]byte, error) {
	return x509.MarshalECPrivateKey(c.key)
}

// Certificate returns the root certificate suitable for use as the
// single entry of a tls.Config.RootCAs or client trust store.
func (c *CA) Certificate() *x509.Certificate {
	return c.cert
}
