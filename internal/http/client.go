// Package http builds the HTTP clients shared by the web API and the
// object-storage transport.
package http

import (
	"crypto/tls"
	"net"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/cloudpan/pan115/internal/config"
	"github.com/cloudpan/pan115/internal/constants"
)

// ConfigureHTTPClient configures an HTTP client with proxy settings.
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}

	if err := configureProxy(transport, cfg); err != nil {
		return nil, err
	}

	return &nethttp.Client{
		Transport: transport,
		Timeout:   constants.APIContextTimeout * 10,
	}, nil
}

// CreateTransferClient creates an HTTP client tuned for large object-storage
// transfers. It shares proxy settings with the API client but removes the
// overall timeout: each upload operation sets its own deadline via context.
func CreateTransferClient(cfg *config.Config) (*nethttp.Client, error) {
	client, err := ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		client.Timeout = 0
		return client, nil
	}

	// Connection pooling sized for one transfer plus status polls.
	tr.MaxIdleConns = 64
	tr.MaxIdleConnsPerHost = 16
	tr.MaxConnsPerHost = 16

	// No benefit compressing opaque payload bytes.
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	// Runtime toggle for HTTP/2 (useful for debugging or compatibility issues).
	if os.Getenv("PAN115_DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	client.Transport = tr
	client.Timeout = 0

	return client, nil
}
