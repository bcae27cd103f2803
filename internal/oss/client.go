package oss

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cloudpan/pan115/internal/logging"
	"github.com/cloudpan/pan115/internal/models"
)

// TokenSource supplies a valid security token for each request. Implementations
// refresh expiring tokens before handing them out.
type TokenSource func(ctx context.Context) (*models.OSSToken, error)

// Part identifies one uploaded part of a multipart session.
type Part struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
	Size       int64  `xml:"Size"`
}

// RequestError is a non-2xx response from the object store.
type RequestError struct {
	Method     string
	Bucket     string
	Key        string
	UploadID   string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("oss: %s /%s/%s returned %d", e.Method, e.Bucket, e.Key, e.StatusCode)
	if e.UploadID != "" {
		msg += " (upload " + e.UploadID + ")"
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client talks to one object-storage endpoint.
type Client struct {
	hc       *nethttp.Client
	endpoint string
	tokens   TokenSource
	log      *logging.Logger
}

// NewClient builds a client for endpoint (scheme://host). tokens must not be
// nil.
func NewClient(hc *nethttp.Client, endpoint string, tokens TokenSource, log *logging.Logger) *Client {
	if hc == nil {
		hc = nethttp.DefaultClient
	}
	return &Client{hc: hc, endpoint: strings.TrimRight(endpoint, "/"), tokens: tokens, log: log}
}

// objectURL renders the request URL for bucket/key. Virtual-hosted style by
// default; IP endpoints (local fixtures, private deployments) fall back to
// path style since bucket subdomains cannot resolve there.
func (c *Client) objectURL(bucket, key string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("oss: bad endpoint %q: %w", c.endpoint, err)
	}

	escaped := escapeKey(key)
	host := u.Hostname()
	if net.ParseIP(host) != nil || host == "localhost" {
		u.Path = "/" + bucket + "/" + escaped
	} else {
		u.Host = bucket + "." + u.Host
		u.Path = "/" + escaped
	}
	return u.String(), nil
}

func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// do signs and executes one request. query goes into the URL; the signing key
// stays unescaped. A nil token source entry is an error.
func (c *Client) do(ctx context.Context, method, bucket, key, uploadID string, query url.Values, headers map[string]string, body io.Reader, size int64) (*nethttp.Response, error) {
	token, err := c.tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("oss: fetching token: %w", err)
	}

	rawURL, err := c.objectURL(bucket, key)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if size >= 0 {
		req.ContentLength = size
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("x-oss-security-token", token.SecurityToken)

	SignRequest(req, bucket, key, token.AccessKeyID, token.AccessKeySecret)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oss: %s /%s/%s: %w", method, bucket, key, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &RequestError{
			Method:     method,
			Bucket:     bucket,
			Key:        key,
			UploadID:   uploadID,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	return resp, nil
}

// callbackHeaders renders the registration callback as the base64 header pair
// the store forwards on completion.
func callbackHeaders(cb *models.Callback) map[string]string {
	if cb == nil {
		return nil
	}
	h := map[string]string{
		"x-oss-callback": base64.StdEncoding.EncodeToString([]byte(cb.Callback)),
	}
	if cb.CallbackVar != "" {
		h["x-oss-callback-var"] = base64.StdEncoding.EncodeToString([]byte(cb.CallbackVar))
	}
	return h
}

// decodeCallback parses the drive's registration acknowledgement from a
// callback-enabled response body.
func decodeCallback(resp *nethttp.Response) (*models.CallbackData, error) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("oss: reading callback body: %w", err)
	}

	var data models.CallbackData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("oss: decoding callback %q: %w", raw, err)
	}
	if !data.State {
		return nil, fmt.Errorf("oss: registration rejected: code %d: %s", data.Code, data.Message)
	}
	return &data, nil
}

// PutObject uploads body in a single request and returns the drive's
// registration acknowledgement delivered through the completion callback.
func (c *Client) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, cb *models.Callback) (*models.CallbackData, error) {
	resp, err := c.do(ctx, nethttp.MethodPut, bucket, key, "", nil, callbackHeaders(cb), body, size)
	if err != nil {
		return nil, err
	}
	return decodeCallback(resp)
}

type initiateResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID string   `xml:"UploadId"`
}

// InitiateMultipart opens a multipart session and returns its upload ID.
func (c *Client) InitiateMultipart(ctx context.Context, bucket, key string) (string, error) {
	query := url.Values{"uploads": {""}}
	resp, err := c.do(ctx, nethttp.MethodPost, bucket, key, "", query, nil, nil, 0)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result initiateResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("oss: decoding initiate response: %w", err)
	}
	if result.UploadID == "" {
		return "", fmt.Errorf("oss: initiate response missing upload id")
	}
	return result.UploadID, nil
}

// UploadPart sends one part. partNumber starts at 1. The returned Part
// carries the ETag needed for completion.
func (c *Client) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, body io.Reader, size int64) (Part, error) {
	query := url.Values{
		"partNumber": {strconv.Itoa(partNumber)},
		"uploadId":   {uploadID},
	}
	resp, err := c.do(ctx, nethttp.MethodPut, bucket, key, uploadID, query, nil, body, size)
	if err != nil {
		return Part{}, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return Part{
		PartNumber: partNumber,
		ETag:       strings.Trim(resp.Header.Get("ETag"), `"`),
		Size:       size,
	}, nil
}

type listPartsResult struct {
	XMLName              xml.Name `xml:"ListPartsResult"`
	IsTruncated          bool     `xml:"IsTruncated"`
	NextPartNumberMarker int      `xml:"NextPartNumberMarker"`
	Parts                []Part   `xml:"Part"`
}

// ListParts returns every part the store has accepted for uploadID, in part
// number order, following pagination to the end.
func (c *Client) ListParts(ctx context.Context, bucket, key, uploadID string) ([]Part, error) {
	var parts []Part
	marker := 0

	for {
		query := url.Values{"uploadId": {uploadID}}
		if marker > 0 {
			query.Set("part-number-marker", strconv.Itoa(marker))
		}

		resp, err := c.do(ctx, nethttp.MethodGet, bucket, key, uploadID, query, nil, nil, 0)
		if err != nil {
			return nil, err
		}

		var page listPartsResult
		decodeErr := xml.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("oss: decoding part listing: %w", decodeErr)
		}

		parts = append(parts, page.Parts...)
		if !page.IsTruncated {
			return parts, nil
		}
		marker = page.NextPartNumberMarker
	}
}

type completePart struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

type completeUpload struct {
	XMLName xml.Name       `xml:"CompleteMultipartUpload"`
	Parts   []completePart `xml:"Part"`
}

// CompleteMultipart closes the session with the given part manifest and
// returns the registration acknowledgement.
func (c *Client) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []Part, cb *models.Callback) (*models.CallbackData, error) {
	manifest := completeUpload{}
	for _, p := range parts {
		manifest.Parts = append(manifest.Parts, completePart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	payload, err := xml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("oss: encoding completion manifest: %w", err)
	}

	query := url.Values{"uploadId": {uploadID}}
	headers := callbackHeaders(cb)
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = "application/xml"

	resp, err := c.do(ctx, nethttp.MethodPost, bucket, key, uploadID, query, headers, bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, err
	}
	return decodeCallback(resp)
}

// AbortMultipart discards the session and any stored parts. A 404 means the
// session is already gone and counts as success.
func (c *Client) AbortMultipart(ctx context.Context, bucket, key, uploadID string) error {
	query := url.Values{"uploadId": {uploadID}}
	resp, err := c.do(ctx, nethttp.MethodDelete, bucket, key, uploadID, query, nil, nil, 0)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == nethttp.StatusNotFound {
			return nil
		}
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}
