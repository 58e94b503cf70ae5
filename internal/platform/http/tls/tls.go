// Package tls builds the listener TLS config from the [tls] section.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/MahdiBaghbani/busyday-go/internal/platform/config"
	"github.com/MahdiBaghbani/busyday-go/internal/platform/logutil"
)

var (
	ErrInvalidTLSMode = errors.New("invalid TLS mode")
	ErrMissingCert    = errors.New("missing certificate or key file")
)

const (
	defaultSelfSignedDir = ".busyday/certs"
	certFileName         = "server.crt"
	keyFileName          = "server.key"
	selfSignedValidity   = 90 * 24 * time.Hour
	// renewBefore regenerates a development cert this close to expiry.
	renewBefore = 7 * 24 * time.Hour
)

// TLSManager resolves the configured mode to a *tls.Config.
type TLSManager struct {
	cfg    *config.TLSConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewTLSManager creates a TLS manager.
func NewTLSManager(cfg *config.TLSConfig, logger *slog.Logger) *TLSManager {
	return &TLSManager{cfg: cfg, logger: logutil.NoopIfNil(logger), now: time.Now}
}

// GetTLSConfig returns the listener config, or nil for mode "off".
// hostname is only used by "selfsigned".
func (m *TLSManager) GetTLSConfig(hostname string) (*cryptotls.Config, error) {
	switch m.cfg.Mode {
	case "", "off":
		return nil, nil
	case "static":
		if m.cfg.CertFile == "" || m.cfg.KeyFile == "" {
			return nil, ErrMissingCert
		}
		cert, err := cryptotls.LoadX509KeyPair(m.cfg.CertFile, m.cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load certificate: %w", err)
		}
		m.logger.Info("loaded static TLS certificate", "cert_file", m.cfg.CertFile)
		return serverConfig(cert), nil
	case "selfsigned":
		return m.selfSigned(hostname)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidTLSMode, m.cfg.Mode)
	}
}

func serverConfig(cert cryptotls.Certificate) *cryptotls.Config {
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		MinVersion:   cryptotls.VersionTLS12,
	}
}

// selfSigned reuses the pair in SelfSignedDir while it still covers
// hostname and is not close to expiry, and writes a fresh one otherwise.
func (m *TLSManager) selfSigned(hostname string) (*cryptotls.Config, error) {
	dir := m.cfg.SelfSignedDir
	if dir == "" {
		dir = defaultSelfSignedDir
	}
	certFile := filepath.Join(dir, certFileName)
	keyFile := filepath.Join(dir, keyFileName)
	hosts := certHosts(hostname)

	if cert, err := cryptotls.LoadX509KeyPair(certFile, keyFile); err == nil {
		if m.reusable(cert, hosts) {
			m.logger.Info("loaded self-signed certificate", "cert_file", certFile)
			return serverConfig(cert), nil
		}
		m.logger.Info("self-signed certificate stale, regenerating", "cert_file", certFile)
	}

	certPEM, keyPEM, notAfter, err := generate(hosts, m.now())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cert directory: %w", err)
	}
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("write certificate: %w", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write key: %w", err)
	}
	m.logger.Info("generated self-signed certificate",
		"cert_file", certFile, "hosts", hosts, "expires", notAfter)

	cert, err := cryptotls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return serverConfig(cert), nil
}

func (m *TLSManager) reusable(cert cryptotls.Certificate, hosts []string) bool {
	leaf := cert.Leaf
	if leaf == nil {
		var err error
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return false
		}
	}
	if m.now().Add(renewBefore).After(leaf.NotAfter) {
		return false
	}
	for _, h := range hosts {
		if leaf.VerifyHostname(h) != nil {
			return false
		}
	}
	return true
}

// certHosts is hostname plus the loopback names, deduplicated.
func certHosts(hostname string) []string {
	hosts := []string{"localhost", "127.0.0.1", "::1"}
	if hostname != "" && !slices.Contains(hosts, hostname) {
		hosts = append([]string{hostname}, hosts...)
	}
	return hosts
}

func generate(hosts []string, now time.Time) (certPEM, keyPEM []byte, notAfter time.Time, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("generate serial: %w", err)
	}

	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"busyday development"},
			CommonName:   hosts[0],
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, time.Time{}, fmt.Errorf("marshal key: %w", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, tmpl.NotAfter, nil
}
