package api

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cloudpan/pan115/internal/constants"
	"github.com/cloudpan/pan115/internal/crypto"
	"github.com/cloudpan/pan115/internal/models"
)

// UploadInfo returns the account's upload key pair, fetching it on first use.
func (c *Client) UploadInfo(ctx context.Context) (*models.UploadInfo, error) {
	c.mu.Lock()
	cached := c.uploadInfo
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	raw, err := c.doRequest(ctx, nethttp.MethodGet, c.endpoints.UploadInfoURL, nil, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		State bool `json:"state"`
		models.UploadInfo
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("api: decoding upload info: %w", err)
	}
	if !resp.State || resp.UserKey == "" {
		return nil, &ProtocolError{Endpoint: "uploadinfo", Raw: raw}
	}

	info := resp.UploadInfo
	c.mu.Lock()
	c.uploadInfo = &info
	c.mu.Unlock()
	return &info, nil
}

// Gateway returns the object-storage endpoint descriptor, fetching it on
// first use.
func (c *Client) Gateway(ctx context.Context) (*models.UploadGateway, error) {
	c.mu.Lock()
	cached := c.gateway
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	raw, err := c.doRequest(ctx, nethttp.MethodGet, c.endpoints.GatewayURL, nil, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		State bool `json:"state"`
		models.UploadGateway
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("api: decoding upload gateway: %w", err)
	}
	if !resp.State || resp.Endpoint == "" {
		return nil, &ProtocolError{Endpoint: "getuploadinfo", Raw: raw}
	}

	gw := resp.UploadGateway
	c.mu.Lock()
	c.gateway = &gw
	c.mu.Unlock()
	return &gw, nil
}

// Token returns a storage token, refreshing the cached one when it nears
// expiry. Safe for concurrent use; usable directly as an oss.TokenSource.
func (c *Client) Token(ctx context.Context) (*models.OSSToken, error) {
	c.mu.Lock()
	cached := c.token
	c.mu.Unlock()
	if cached != nil && !cached.NeedsRefresh() {
		return cached, nil
	}

	gw, err := c.Gateway(ctx)
	if err != nil {
		return nil, err
	}
	tokenURL := gw.GetTokenURL
	if tokenURL == "" {
		tokenURL = c.endpoints.TokenURL
	}

	raw, err := c.doRequest(ctx, nethttp.MethodGet, tokenURL, nil, nil)
	if err != nil {
		return nil, err
	}

	var token models.OSSToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("api: decoding storage token: %w", err)
	}
	if token.AccessKeyID == "" || token.AccessKeySecret == "" {
		return nil, &ProtocolError{Endpoint: "gettoken", Raw: raw}
	}

	c.mu.Lock()
	c.token = &token
	c.mu.Unlock()
	return &token, nil
}

// InvalidateToken drops the cached storage token so the next Token call
// fetches a fresh one. Used by the upload retry path after a credential
// failure.
func (c *Client) InvalidateToken() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

// InitUploadRequest is one fast-upload negotiation attempt.
type InitUploadRequest struct {
	Filename string
	Size     int64
	Digest   string // uppercase hex SHA-1 of the full content
	Target   string // destination tag, e.g. "U_1_0"

	// Range-proof answer, set on the second pass only.
	SignKey string
	SignVal string
}

// Target renders the destination tag for a directory id.
func Target(dirID string) string {
	if dirID == "" {
		dirID = "0"
	}
	return "U_1_" + dirID
}

// InitUpload performs one negotiation round trip. The form is signed, bound
// to the current timestamp, encrypted, and posted with the key-exchange
// token; the response is decrypted before decoding. Interpretation of the
// returned status is left to the caller.
func (c *Client) InitUpload(ctx context.Context, req InitUploadRequest) (*models.UploadInitResp, error) {
	info, err := c.UploadInfo(ctx)
	if err != nil {
		return nil, err
	}

	cred := crypto.Credential{UserID: info.UserID.String(), UserKey: info.UserKey}
	ts := time.Now().Unix()

	form := url.Values{
		"appid":      {"0"},
		"appversion": {constants.AppVersion},
		"userid":     {cred.UserID},
		"filename":   {req.Filename},
		"filesize":   {strconv.FormatInt(req.Size, 10)},
		"fileid":     {req.Digest},
		"target":     {req.Target},
		"sig":        {crypto.UploadSignature(cred, req.Digest, req.Target)},
		"t":          {strconv.FormatInt(ts, 10)},
		"token": {crypto.UploadToken(req.Digest, req.Size, req.SignKey, req.SignVal,
			cred.UserID, ts, constants.AppVersion)},
	}
	if req.SignKey != "" {
		form.Set("sign_key", req.SignKey)
		form.Set("sign_val", req.SignVal)
	}

	encrypted, err := c.cipher.Encrypt([]byte(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("api: encrypting negotiation payload: %w", err)
	}
	kec, err := c.cipher.EncodeToken(ts)
	if err != nil {
		return nil, fmt.Errorf("api: encoding key-exchange token: %w", err)
	}

	rawURL := c.endpoints.InitURL + "?" + url.Values{"k_ec": {kec}}.Encode()
	req2, err := retryableUploadPost(ctx, rawURL, encrypted)
	if err != nil {
		return nil, err
	}
	req2.Header.Set("Cookie", c.cookie)
	req2.Header.Set("User-Agent", "Mozilla/5.0 115disk/"+constants.AppVersion)
	req2.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.rc.Do(req2)
	if err != nil {
		return nil, fmt.Errorf("api: negotiation request: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	decrypted, err := c.cipher.Decrypt(body)
	if err != nil {
		return nil, fmt.Errorf("api: decrypting negotiation response: %w", err)
	}

	var result models.UploadInitResp
	if err := json.Unmarshal(decrypted, &result); err != nil {
		return nil, fmt.Errorf("api: decoding negotiation response %q: %w", decrypted, err)
	}
	return &result, nil
}

// SampleInitUpload initializes a form upload, the path that skips content
// fingerprinting entirely.
func (c *Client) SampleInitUpload(ctx context.Context, filename string, size int64, dirID string) (*models.SampleInitResp, error) {
	info, err := c.UploadInfo(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"userid":   {info.UserID.String()},
		"filename": {filename},
		"filesize": {strconv.FormatInt(size, 10)},
		"target":   {Target(dirID)},
	}

	raw, err := c.doRequest(ctx, "", c.endpoints.SampleInitURL, nil, form)
	if err != nil {
		return nil, err
	}

	var resp models.SampleInitResp
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("api: decoding sample init response: %w", err)
	}
	if resp.Host == "" || resp.Object == "" {
		return nil, &ProtocolError{Endpoint: "sampleinitupload", Raw: raw}
	}
	return &resp, nil
}
