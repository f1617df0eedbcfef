// Package tls builds client TLS configurations for SMTP connections,
// including custom CA trust for self-hosted servers.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// ClientConfig returns a tls.Config for connecting to host. When caFile is
// set, its PEM certificates are appended to the system pool so self-signed
// custom servers verify cleanly. insecure disables verification entirely and
// is meant for local testing only.
func ClientConfig(host, caFile string, insecure bool) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}

	if insecure {
		cfg.InsecureSkipVerify = true
		return cfg, nil
	}

	if caFile != "" {
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA file %s", caFile)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}
