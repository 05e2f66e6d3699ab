package util

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"

	"github.com/jerabekjiri/automation-hub-collection/internal/config"
)

// NewHTTPClient builds an *http.Client for talking to Automation Hub.
// The client keeps a cookie jar because UI login is session based.
func NewHTTPClient(tc config.TLSConfig, timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	client := &http.Client{
		Jar:     jar,
		Timeout: timeout,
	}

	transport, err := NewTLSTransport(tc)
	if err != nil {
		return nil, err
	}
	if transport != nil {
		client.Transport = transport
	}
	return client, nil
}

// NewTLSTransport builds an *http.Transport with TLS settings from the given config.
// If neither SkipVerify nor CACert is set, it returns nil and the default
// transport should be used.
func NewTLSTransport(tc config.TLSConfig) (*http.Transport, error) {
	if !tc.SkipVerify && tc.CACert == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{}

	if tc.SkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	if tc.CACert != "" {
		caCert, err := os.ReadFile(tc.CACert)
		if err != nil {
			return nil, fmt.Errorf("reading CA certificate %s: %w", tc.CACert, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", tc.CACert)
		}
		tlsConfig.RootCAs = pool
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return transport, nil
}
