package http

import (
	nethttp "net/http"
	"net/url"
	"testing"

	"github.com/cloudpan/pan115/internal/config"
)

func TestConfigureProxyModes(t *testing.T) {
	cases := []struct {
		name      string
		cfg       *config.Config
		wantProxy bool
		wantErr   bool
	}{
		{"empty mode", &config.Config{}, false, false},
		{"no-proxy", &config.Config{ProxyMode: "no-proxy"}, false, false},
		{"system", &config.Config{ProxyMode: "system"}, true, false},
		{"basic", &config.Config{ProxyMode: "basic", ProxyHost: "proxy.corp", ProxyPort: 3128}, true, false},
		{"basic without host", &config.Config{ProxyMode: "basic"}, false, false},
		{"unknown mode", &config.Config{ProxyMode: "socks5"}, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &nethttp.Transport{}
			err := configureProxy(transport, tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("configureProxy: %v", err)
			}
			if (transport.Proxy != nil) != tc.wantProxy {
				t.Errorf("proxy set = %v, want %v", transport.Proxy != nil, tc.wantProxy)
			}
		})
	}
}

func TestBuildProxyURL(t *testing.T) {
	u := buildProxyURL(&config.Config{ProxyHost: "proxy.corp"})
	if u.String() != "http://proxy.corp:8080" {
		t.Errorf("default port url = %s", u)
	}

	u = buildProxyURL(&config.Config{ProxyHost: "proxy.corp", ProxyPort: 3128, ProxyUser: "u", ProxyPassword: "p"})
	if u.String() != "http://u:p@proxy.corp:3128" {
		t.Errorf("authenticated url = %s", u)
	}

	// Credentials are only embedded when both parts are present.
	u = buildProxyURL(&config.Config{ProxyHost: "proxy.corp", ProxyUser: "u"})
	if u.User != nil {
		t.Errorf("partial credentials embedded: %s", u)
	}
}

func TestProxyFuncWithBypass(t *testing.T) {
	proxyURL := &url.URL{Scheme: "http", Host: "proxy.corp:3128"}
	fn := proxyFuncWithBypass(proxyURL, "internal.example.com")

	req, _ := nethttp.NewRequest(nethttp.MethodGet, "http://internal.example.com/x", nil)
	got, err := fn(req)
	if err != nil {
		t.Fatalf("proxy func: %v", err)
	}
	if got != nil {
		t.Errorf("bypass host still proxied via %s", got)
	}

	req, _ = nethttp.NewRequest(nethttp.MethodGet, "http://external.example.org/x", nil)
	got, err = fn(req)
	if err != nil {
		t.Fatalf("proxy func: %v", err)
	}
	if got == nil || got.Host != "proxy.corp:3128" {
		t.Errorf("external host proxy = %v", got)
	}
}
