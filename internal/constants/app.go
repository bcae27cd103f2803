package constants

import (
	"time"
)

// Upload thresholds
const (
	// DefaultPartSize - size of each multipart chunk (10 MiB)
	//
	// Trade-offs:
	// - Smaller parts = more HTTP requests but better progress granularity
	// - Larger parts = better throughput but coarser resume checkpoints
	DefaultPartSize = 10 * 1024 * 1024

	// MinPartSize - minimum accepted part size (100 KB, except last part)
	MinPartSize = 100 * 1024

	// MaxPartCount - the object store rejects sessions with more parts
	MaxPartCount = 10000

	// DigestChunkSize - read size while streaming content through SHA-1 (64 KB)
	DigestChunkSize = 64 * 1024
)

// Credential refresh
const (
	// TokenRefreshWindow - refresh the object-storage security token when it is
	// within this window of its expiry. Tokens are issued for ~1 hour.
	TokenRefreshWindow = 5 * time.Minute
)

// Retry configuration
const (
	// MaxRetries - maximum number of retries for transient errors
	MaxRetries = 10

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (15s)
	// Exponential backoff with jitter caps at this value
	RetryMaxDelay = 15 * time.Second
)

// Polling
const (
	// PollInterval - fixed delay between consecutive status polls of a
	// server-side job. Polls never overlap: poll, wait, poll again.
	PollInterval = 1 * time.Second
)

// Web API endpoints
const (
	// WebAPIBase - general drive API (export, extract, ...)
	WebAPIBase = "https://webapi.115.com"

	// UploadInfoURL - returns the account's user_id and userkey, both of which
	// seed the fast-upload signature
	UploadInfoURL = "https://proapi.115.com/app/uploadinfo"

	// UploadGatewayURL - returns the object-storage endpoint and token URL.
	// Effectively idempotent; fetched once and cached.
	UploadGatewayURL = "https://uplb.115.com/3.0/getuploadinfo.php"

	// UploadTokenURL - issues the temporary object-storage security token.
	// Fallback when the gateway descriptor carries no token URL of its own.
	UploadTokenURL = "https://uplb.115.com/3.0/gettoken.php"

	// UploadInitURL - the fast-upload negotiation endpoint
	UploadInitURL = "https://uplb.115.com/4.0/initupload.php"

	// SampleInitURL - form-upload initialization (no dedup)
	SampleInitURL = "https://uplb.115.com/3.0/sampleinitupload.php"
)

// Protocol constants
const (
	// TokenSalt - salt prefix for the negotiation token digest
	TokenSalt = "Qclm8MGWUv59TnrR0XPg"

	// AppVersion - client version reported in the negotiation payload and
	// user-agent; the token digest covers it, so both must agree
	AppVersion = "99.99.99.99"
)

// HTTP client timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// APIContextTimeout - default timeout for web API operations (30 seconds)
	APIContextTimeout = 30 * time.Second

	// PartUploadTimeout - per-part timeout for multipart uploads (10 minutes)
	PartUploadTimeout = 10 * time.Minute
)
