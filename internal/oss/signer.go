// Package oss is a minimal client for the drive's object-storage backend. It
// covers exactly the operations uploads need: single PUT with callback,
// multipart init, part upload, part listing, complete, and abort.
package oss

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// subresources are the query parameters that participate in the canonical
// resource. Anything else in the query string is excluded from signing.
var subresources = map[string]bool{
	"acl":            true,
	"uploads":        true,
	"uploadId":       true,
	"partNumber":     true,
	"delete":         true,
	"callback":       true,
	"callback-var":   true,
	"security-token": true,

	"response-content-type":        true,
	"response-content-language":    true,
	"response-content-disposition": true,
	"response-content-encoding":    true,
	"response-cache-control":       true,
	"response-expires":             true,
}

const headerPrefix = "x-oss-"

// SignRequest computes the legacy header signature and sets the Date and
// Authorization headers on req. bucket and key identify the target object;
// the request URL only contributes its query string.
func SignRequest(req *http.Request, bucket, key, accessKeyID, accessKeySecret string) {
	date := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Set("Date", date)

	canonical := canonicalString(req, bucket, key, date)

	mac := hmac.New(sha1.New, []byte(accessKeySecret))
	mac.Write([]byte(canonical))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("Authorization", "OSS "+accessKeyID+":"+sig)
}

// canonicalString assembles the string to sign:
//
//	VERB \n Content-MD5 \n Content-Type \n Date \n
//	canonicalized x-oss- headers, canonicalized resource
func canonicalString(req *http.Request, bucket, key, date string) string {
	var b strings.Builder
	b.WriteString(req.Method)
	b.WriteByte('\n')
	b.WriteString(req.Header.Get("Content-MD5"))
	b.WriteByte('\n')
	b.WriteString(req.Header.Get("Content-Type"))
	b.WriteByte('\n')
	b.WriteString(date)
	b.WriteByte('\n')
	b.WriteString(canonicalHeaders(req.Header))
	b.WriteString(canonicalResource(bucket, key, req.URL.Query()))
	return b.String()
}

// canonicalHeaders lowercases x-oss- header names, sorts them, and renders
// one "name:value\n" line each. The block always terminates in a newline;
// with no such headers it is a single blank line.
func canonicalHeaders(h http.Header) string {
	var names []string
	for name := range h {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, headerPrefix) {
			names = append(names, lower)
		}
	}
	if len(names) == 0 {
		return "\n"
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(h.Get(name)))
		b.WriteByte('\n')
	}
	return b.String()
}

// canonicalResource renders /{bucket}/{key} plus the sorted signing
// subresources. Value-less subresources render bare; valued ones keep their
// raw value.
func canonicalResource(bucket, key string, query url.Values) string {
	var b strings.Builder
	b.WriteByte('/')
	b.WriteString(bucket)
	b.WriteByte('/')
	b.WriteString(key)

	var params []string
	for name := range query {
		if subresources[name] {
			params = append(params, name)
		}
	}
	sort.Strings(params)

	for i, name := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(name)
		if v := query.Get(name); v != "" {
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}
