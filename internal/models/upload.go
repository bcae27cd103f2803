// Package models defines the wire types exchanged with the drive API and the
// object-storage backend.
package models

import (
	"encoding/json"
	"time"

	"github.com/cloudpan/pan115/internal/constants"
)

// UploadInfo carries the per-account key material that seeds the fast-upload
// signature. Fetched once per client from the upload-info endpoint.
type UploadInfo struct {
	UserID  json.Number `json:"user_id"`
	UserKey string      `json:"userkey"`
}

// UploadGateway describes where the object store lives and where to fetch its
// security tokens. The endpoint response is effectively idempotent.
type UploadGateway struct {
	Endpoint    string `json:"endpoint"`
	GetTokenURL string `json:"gettokenurl"`
}

// OSSToken is the time-limited credential for object-storage requests.
type OSSToken struct {
	StatusCode      string    `json:"StatusCode"`
	AccessKeyID     string    `json:"AccessKeyId"`
	AccessKeySecret string    `json:"AccessKeySecret"`
	SecurityToken   string    `json:"SecurityToken"`
	Expiration      time.Time `json:"Expiration"`
}

// TimeToExpiry returns how long until the token expires.
func (t *OSSToken) TimeToExpiry() time.Duration {
	return time.Until(t.Expiration)
}

// NeedsRefresh reports whether the token is inside the refresh window. A token
// without an expiration is treated as expired.
func (t *OSSToken) NeedsRefresh() bool {
	if t == nil || t.Expiration.IsZero() {
		return true
	}
	return t.TimeToExpiry() < constants.TokenRefreshWindow
}

// Callback is the completion-callback descriptor the object store invokes to
// register the finished object with the drive.
type Callback struct {
	Callback    string `json:"callback"`
	CallbackVar string `json:"callback_var"`
}

// Negotiation response statuses.
const (
	// InitStatusNeedsUpload - no existing copy, upload credentials attached
	InitStatusNeedsUpload = 1
	// InitStatusMatched - content already stored; no data transfer needed
	InitStatusMatched = 2
	// InitStatusSignCheck - second-pass range-hash challenge
	InitStatusSignCheck = 7

	// InitStatusCodeSignCheck - statuscode accompanying InitStatusSignCheck
	InitStatusCodeSignCheck = 701
)

// UploadInitResp is the decrypted fast-upload negotiation response.
type UploadInitResp struct {
	Request    string   `json:"request"`
	Status     int      `json:"status"`
	StatusCode int      `json:"statuscode"`
	StatusMsg  string   `json:"statusmsg"`
	PickCode   string   `json:"pickcode"`
	Bucket     string   `json:"bucket"`
	Object     string   `json:"object"`
	Callback   Callback `json:"callback"`

	// Range-proof challenge fields, present when Status/StatusCode indicate a
	// second-pass check. SignCheck is a byte range "start-end", inclusive.
	SignKey   string `json:"sign_key"`
	SignCheck string `json:"sign_check"`
}

// Matched reports whether the server already holds the content.
func (r *UploadInitResp) Matched() bool {
	return r.Status == InitStatusMatched && r.StatusCode == 0
}

// NeedsUpload reports whether upload credentials were issued.
func (r *UploadInitResp) NeedsUpload() bool {
	return r.Status == InitStatusNeedsUpload && r.StatusCode == 0
}

// NeedsSignCheck reports whether the server demands a range proof.
func (r *UploadInitResp) NeedsSignCheck() bool {
	return r.Status == InitStatusSignCheck && r.StatusCode == InitStatusCodeSignCheck
}

// SampleInitResp is the response of the form-upload initialization endpoint
// (the no-dedup path).
type SampleInitResp struct {
	Host      string `json:"host"`
	Object    string `json:"object"`
	Callback  string `json:"callback"`
	AccessID  string `json:"accessid"`
	Policy    string `json:"policy"`
	Signature string `json:"signature"`
}

// CallbackData is the drive's acknowledgement returned through the
// object-storage callback once an upload registers.
type CallbackData struct {
	State    bool        `json:"state"`
	Code     int         `json:"code"`
	Message  string      `json:"message"`
	AreaID   json.Number `json:"aid"`
	CID      string      `json:"cid"`
	FileID   string      `json:"file_id"`
	FileName string      `json:"file_name"`
	FileSize json.Number `json:"file_size"`
	PickCode string      `json:"pick_code"`
	SHA1     string      `json:"sha"`
}
