package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"
)

// DefaultPort is the printer's MQTT-over-TLS port.
const DefaultPort = 8883

// ErrNoCertificates is returned when a CA file holds no usable certificate.
var ErrNoCertificates = errors.New("no certificates found")

// TLSConfig holds configuration for the printer's TLS endpoint.
type TLSConfig struct {
	// RootCAs is the pool used to verify the printer certificate.
	// Nil disables verification, which is what printers in LAN mode need
	// because they present a certificate from a private CA.
	RootCAs *x509.CertPool

	// Serial is matched against the certificate common name when RootCAs
	// is set. Empty skips the check.
	Serial string

	// ServerName is sent as SNI.
	ServerName string
}

// NewPrinterTLSConfig creates the client TLS configuration for a printer.
func NewPrinterTLSConfig(cfg TLSConfig) *tls.Config {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: cfg.ServerName,

		// Printers use their serial as identity, not a DNS name, so hostname
		// verification is always skipped and the chain is checked below.
		InsecureSkipVerify: true,
	}
	if cfg.RootCAs != nil {
		tlsConfig.VerifyPeerCertificate = verifyPrinter(cfg.RootCAs, cfg.Serial)
	}
	return tlsConfig
}

// LoadCAFile reads a PEM bundle into a certificate pool.
func LoadCAFile(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoCertificates)
	}
	return pool, nil
}

func verifyPrinter(roots *x509.CertPool, serial string) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("no certificates presented")
		}

		cert, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("failed to parse certificate: %w", err)
		}

		intermediates := x509.NewCertPool()
		for _, raw := range rawCerts[1:] {
			c, err := x509.ParseCertificate(raw)
			if err != nil {
				continue
			}
			intermediates.AddCert(c)
		}

		opts := x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
			CurrentTime:   time.Now(),
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		}
		if _, err := cert.Verify(opts); err != nil {
			return fmt.Errorf("certificate chain verification failed: %w", err)
		}

		if serial != "" && cert.Subject.CommonName != serial && !slices.Contains(cert.DNSNames, serial) {
			return fmt.Errorf("printer serial mismatch: expected %s, got %s", serial, cert.Subject.CommonName)
		}
		return nil
	}
}
