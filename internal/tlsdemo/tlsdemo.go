// Package tlsdemo provides the TLS configuration behind --https. Without a
// configured certificate it falls back to an embedded self-signed one for
// localhost, good for demos only.
package tlsdemo

import (
	"crypto/tls"
	_ "embed"
	"fmt"
)

var (
	//go:embed demo.crt
	demoCert []byte
	//go:embed demo.key
	demoKey []byte
)

// Config loads certFile/keyFile when both are set, the embedded demo pair
// otherwise.
func Config(certFile, keyFile string) (*tls.Config, error) {
	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case certFile != "" && keyFile != "":
		cert, err = tls.LoadX509KeyPair(certFile, keyFile)
	case certFile != "" || keyFile != "":
		return nil, fmt.Errorf("both TLS_CERT_FILE and TLS_KEY_FILE must be set")
	default:
		cert, err = tls.X509KeyPair(demoCert, demoKey)
	}
	if err != nil {
		return nil, fmt.Errorf("loading certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
