package http

import (
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpproxy"

	"github.com/cloudpan/pan115/internal/config"
)

// configureProxy sets transport.Proxy according to the configured mode.
func configureProxy(transport *nethttp.Transport, cfg *config.Config) error {
	mode := ""
	if cfg != nil {
		mode = strings.ToLower(cfg.ProxyMode)
	}

	switch mode {
	case "no-proxy", "":
		transport.Proxy = nil
		return nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment
		return nil

	case "basic":
		if cfg.ProxyHost == "" {
			// Incomplete saved config; run direct rather than failing startup.
			transport.Proxy = nil
			return nil
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)
		return nil

	default:
		return fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}
}

// buildProxyURL constructs a proxy URL from config.
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", cfg.ProxyHost, port),
	}

	// Only embed credentials if both user and password are provided; an empty
	// password in the URL can cause auth failures with some proxies.
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy
// bypass list. With an empty list it behaves identically to nethttp.ProxyURL;
// otherwise golang.org/x/net/http/httpproxy matches hosts and CIDRs.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
}
