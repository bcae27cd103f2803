// Package api is the client for the drive's web API: upload negotiation,
// credential plumbing, and the server-side job endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/cloudpan/pan115/internal/config"
	"github.com/cloudpan/pan115/internal/constants"
	"github.com/cloudpan/pan115/internal/crypto"
	httpx "github.com/cloudpan/pan115/internal/http"
	"github.com/cloudpan/pan115/internal/logging"
	"github.com/cloudpan/pan115/internal/models"
)

// Endpoints collects the service URLs so fixtures can point the client at a
// local server. Zero values fall back to production.
type Endpoints struct {
	WebAPIBase    string
	UploadInfoURL string
	GatewayURL    string
	TokenURL      string
	InitURL       string
	SampleInitURL string
}

func (e *Endpoints) applyDefaults() {
	if e.WebAPIBase == "" {
		e.WebAPIBase = constants.WebAPIBase
	}
	if e.UploadInfoURL == "" {
		e.UploadInfoURL = constants.UploadInfoURL
	}
	if e.GatewayURL == "" {
		e.GatewayURL = constants.UploadGatewayURL
	}
	if e.TokenURL == "" {
		e.TokenURL = constants.UploadTokenURL
	}
	if e.InitURL == "" {
		e.InitURL = constants.UploadInitURL
	}
	if e.SampleInitURL == "" {
		e.SampleInitURL = constants.SampleInitURL
	}
}

// Client is a cookie-authenticated web API client. Credential material
// (upload key pair, gateway, storage token) is fetched lazily and cached.
type Client struct {
	rc        *retryablehttp.Client
	cookie    string
	endpoints Endpoints
	cipher    crypto.Cipher
	log       *logging.Logger

	mu         sync.Mutex
	uploadInfo *models.UploadInfo
	gateway    *models.UploadGateway
	token      *models.OSSToken
}

// Option adjusts a Client at construction time.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *nethttp.Client) Option {
	return func(c *Client) { c.rc.HTTPClient = hc }
}

// WithCipher replaces the negotiation cipher.
func WithCipher(ci crypto.Cipher) Option {
	return func(c *Client) { c.cipher = ci }
}

// WithEndpoints redirects the service URLs.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) {
		e.applyDefaults()
		c.endpoints = e
	}
}

// NewClient builds a client from cfg. The session cookie must already be
// present; a negotiation cipher is created per client. Endpoints and the
// upload key pair configured in cfg take precedence over their fetched
// defaults.
func NewClient(cfg *config.Config, log *logging.Logger, opts ...Option) (*Client, error) {
	if cfg.Cookie == "" {
		return nil, ErrNotLoggedIn
	}

	hc, err := httpx.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = hc
	rc.RetryMax = 3
	rc.Logger = &retryLogger{log: log}

	cipher, err := crypto.NewECDHCipher()
	if err != nil {
		return nil, fmt.Errorf("api: creating session cipher: %w", err)
	}

	c := &Client{
		rc:     rc,
		cookie: cfg.Cookie,
		cipher: cipher,
		log:    log,
	}
	c.endpoints = Endpoints{
		WebAPIBase: cfg.WebAPIBase,
		InitURL:    cfg.UploadInitURL,
	}
	c.endpoints.applyDefaults()
	if cfg.UserID != "" && cfg.UserKey != "" {
		// A configured key pair skips the uploadinfo bootstrap fetch.
		c.uploadInfo = &models.UploadInfo{UserID: json.Number(cfg.UserID), UserKey: cfg.UserKey}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// webURL joins a path like "files/export_dir" onto the web API base.
func (c *Client) webURL(path string) string {
	return strings.TrimRight(c.endpoints.WebAPIBase, "/") + "/" + strings.TrimLeft(path, "/")
}

// doRequest executes one authenticated request and returns the raw body.
// form non-nil makes it a POST with urlencoded body regardless of method.
func (c *Client) doRequest(ctx context.Context, method, rawURL string, query url.Values, form url.Values) ([]byte, error) {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + query.Encode()
	}

	var body interface{}
	if form != nil {
		method = nethttp.MethodPost
		body = []byte(form.Encode())
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", c.cookie)
	req.Header.Set("User-Agent", "Mozilla/5.0 115disk/"+constants.AppVersion)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.rc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("api: reading %s: %w", rawURL, err)
	}
	if resp.StatusCode != nethttp.StatusOK {
		return nil, fmt.Errorf("api: %s %s returned %d: %s", method, rawURL, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// getData performs a GET against a web API path and unwraps the envelope.
func (c *Client) getData(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	raw, err := c.doRequest(ctx, nethttp.MethodGet, c.webURL(path), query, nil)
	if err != nil {
		return nil, err
	}
	return checkEnvelope(path, raw)
}

// postData performs a form POST against a web API path and unwraps the
// envelope.
func (c *Client) postData(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	raw, err := c.doRequest(ctx, "", c.webURL(path), nil, form)
	if err != nil {
		return nil, err
	}
	return checkEnvelope(path, raw)
}

// retryableUploadPost builds a POST carrying an opaque byte body.
func retryableUploadPost(ctx context.Context, rawURL string, body []byte) (*retryablehttp.Request, error) {
	return retryablehttp.NewRequestWithContext(ctx, nethttp.MethodPost, rawURL, body)
}

// readBody drains a response, enforcing a 200 status.
func readBody(resp *nethttp.Response) ([]byte, error) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("api: reading response: %w", err)
	}
	if resp.StatusCode != nethttp.StatusOK {
		return nil, fmt.Errorf("api: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// checkEnvelope validates the {state, error, errno, data} wrapper.
func checkEnvelope(endpoint string, raw []byte) (json.RawMessage, error) {
	var resp models.BasicResp
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("api: decoding %s response: %w", endpoint, err)
	}
	if !resp.State {
		return nil, &ProtocolError{
			Endpoint: endpoint,
			Errno:    resp.Errno,
			Message:  resp.ErrorMsg,
			Raw:      raw,
		}
	}
	return resp.Data, nil
}

// retryLogger adapts the structured logger to retryablehttp's LeveledLogger.
type retryLogger struct {
	log *logging.Logger
}

func (l *retryLogger) msg(msg string, kv []interface{}) string {
	if len(kv) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}

func (l *retryLogger) Error(msg string, kv ...interface{}) {
	if l.log != nil {
		l.log.Errorf("%s", l.msg(msg, kv))
	}
}

func (l *retryLogger) Warn(msg string, kv ...interface{}) {
	if l.log != nil {
		l.log.Warnf("%s", l.msg(msg, kv))
	}
}

func (l *retryLogger) Info(msg string, kv ...interface{}) {
	if l.log != nil {
		l.log.Debugf("%s", l.msg(msg, kv))
	}
}

func (l *retryLogger) Debug(msg string, kv ...interface{}) {
	if l.log != nil {
		l.log.Debugf("%s", l.msg(msg, kv))
	}
}
