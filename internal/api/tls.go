package api

import (
	"crypto/tls"
	"fmt"
	"os"

	"github.com/AaronLay10/Cadence/internal/config"
)

// TLSConfig holds TLS certificate paths loaded from environment variables.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

var tlsConfig *TLSConfig

// InitTLS reads CADENCE_TLS_CERT and CADENCE_TLS_KEY. TLS is enabled only
// when both are set. Paths may start with ~ or reference env vars.
func InitTLS() error {
	tlsConfig = nil
	certFile := os.Getenv("CADENCE_TLS_CERT")
	keyFile := os.Getenv("CADENCE_TLS_KEY")
	if certFile == "" || keyFile == "" {
		return nil
	}

	cert, err := config.ExpandPath(certFile)
	if err != nil {
		return fmt.Errorf("CADENCE_TLS_CERT: %w", err)
	}
	key, err := config.ExpandPath(keyFile)
	if err != nil {
		return fmt.Errorf("CADENCE_TLS_KEY: %w", err)
	}
	tlsConfig = &TLSConfig{CertFile: cert, KeyFile: key}
	return nil
}

// IsTLSEnabled returns true if TLS is configured.
func IsTLSEnabled() bool {
	return tlsConfig != nil && tlsConfig.CertFile != "" && tlsConfig.KeyFile != ""
}

// GetTLSConfig returns the current TLS configuration (may be nil).
func GetTLSConfig() *TLSConfig {
	return tlsConfig
}

// LoadTLSConfig loads the key pair. It returns nil, nil when TLS is off.
func LoadTLSConfig() (*tls.Config, error) {
	if !IsTLSEnabled() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// SetTLSConfigForTest allows tests to set TLS config directly.
func SetTLSConfigForTest(cfg *TLSConfig) {
	tlsConfig = cfg
}
