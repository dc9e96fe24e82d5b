package api

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"vce/pkg/config"
)

// TLSEnabled reports whether the server section names a certificate pair.
func TLSEnabled(sc config.ServerConfig) bool {
	return sc.TLSCert != "" && sc.TLSKey != ""
}

// ServerTLSConfig loads the server certificate and, when a client CA is
// configured, requires agents to present a certificate signed by it.
func ServerTLSConfig(sc config.ServerConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(sc.TLSCert, sc.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("load cert/key: %w", err)
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if sc.ClientCA == "" {
		return cfg, nil
	}
	pool, err := loadPool(sc.ClientCA)
	if err != nil {
		return nil, err
	}
	cfg.ClientCAs = pool
	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	return cfg, nil
}

func loadPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("invalid client ca %s", path)
	}
	return pool, nil
}
