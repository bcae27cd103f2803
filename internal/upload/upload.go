package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"

	"github.com/cloudpan/pan115/internal/api"
	"github.com/cloudpan/pan115/internal/logging"
	"github.com/cloudpan/pan115/internal/models"
	"github.com/cloudpan/pan115/internal/oss"
	"github.com/cloudpan/pan115/internal/task"
)

// Options selects how a source is uploaded.
type Options struct {
	// DirID is the destination directory, "0" or empty for the root.
	DirID string

	// PartSize selects multipart transfer when the content exceeds it.
	// Zero means single-shot regardless of size.
	PartSize int64

	// ResumeUploadID continues an interrupted multipart session.
	ResumeUploadID string

	// Digest is a precomputed hex SHA-1 of the content. When set, the source
	// is not read to fingerprint it.
	Digest string

	// DirectUpload skips the fingerprint negotiation entirely and pushes the
	// bytes through the form endpoint. No deduplication, no resume.
	DirectUpload bool

	// Progress, when set, receives transfer updates.
	Progress ProgressFunc
}

// Result describes a finished upload.
type Result struct {
	// Matched is true when the drive already held the content and no bytes
	// were transferred.
	Matched bool

	PickCode string
	FileID   string
	FileName string
	FileSize int64
}

// Uploader is the front door of the pipeline.
type Uploader struct {
	client   *api.Client
	transfer *nethttp.Client
	log      *logging.Logger
}

// New wires an uploader to the API client. transfer carries the object-store
// traffic; nil falls back to the default client.
func New(client *api.Client, transfer *nethttp.Client, log *logging.Logger) *Uploader {
	if transfer == nil {
		transfer = nethttp.DefaultClient
	}
	return &Uploader{client: client, transfer: transfer, log: log}
}

// refreshToken drops the cached storage token and fetches a new one.
func (u *Uploader) refreshToken(ctx context.Context) error {
	u.client.InvalidateToken()
	_, err := u.client.Token(ctx)
	return err
}

// Upload runs the full pipeline synchronously: fingerprint, negotiate, and
// transfer whatever the drive does not already hold.
func (u *Uploader) Upload(ctx context.Context, src *Source, opts Options) (*Result, error) {
	if opts.Digest != "" {
		src.SetDigest(opts.Digest)
	}
	if opts.DirectUpload {
		return u.directUpload(ctx, src, opts)
	}

	ticket, err := NewNegotiator(u.client, u.log).Negotiate(ctx, src, opts.DirID)
	if err != nil {
		return nil, err
	}
	if ticket.Matched {
		if u.log != nil {
			u.log.Infof("matched existing copy of %s, no transfer needed", src.Name())
		}
		if opts.Progress != nil {
			opts.Progress(src.Size(), src.Size())
		}
		return &Result{
			Matched:  true,
			PickCode: ticket.PickCode,
			FileName: src.Name(),
			FileSize: src.Size(),
		}, nil
	}

	gw, err := u.client.Gateway(ctx)
	if err != nil {
		return nil, err
	}
	ossc := oss.NewClient(u.transfer, gw.Endpoint, u.client.Token, u.log)

	var data *models.CallbackData
	if opts.PartSize > 0 && src.Size() > opts.PartSize {
		data, err = runMultipart(ctx, ossc, ticket, src, opts.PartSize,
			opts.ResumeUploadID, u.refreshToken, opts.Progress, u.log)
		if errors.Is(err, ErrResumeInconsistent) && opts.ResumeUploadID != "" {
			// The stored session cannot be continued; discard it so a retry
			// starts clean.
			if abortErr := ossc.AbortMultipart(ctx, ticket.Bucket, ticket.Object, opts.ResumeUploadID); abortErr != nil && u.log != nil {
				u.log.Warnf("aborting stale session %s: %v", opts.ResumeUploadID, abortErr)
			}
		}
	} else {
		data, err = putSingle(ctx, ossc, ticket, src, u.refreshToken, opts.Progress)
	}
	if err != nil {
		return nil, err
	}
	return resultFromCallback(src, ticket.PickCode, data), nil
}

// UploadAsync runs Upload in the background and returns its task handle.
func (u *Uploader) UploadAsync(ctx context.Context, src *Source, opts Options) *task.Task[*Result] {
	return task.Run(ctx, func(ctx context.Context) (*Result, error) {
		return u.Upload(ctx, src, opts)
	})
}

func resultFromCallback(src *Source, pickCode string, data *models.CallbackData) *Result {
	r := &Result{
		PickCode: pickCode,
		FileName: src.Name(),
		FileSize: src.Size(),
	}
	if data != nil {
		r.FileID = data.FileID
		if data.PickCode != "" {
			r.PickCode = data.PickCode
		}
		if data.FileName != "" {
			r.FileName = data.FileName
		}
	}
	return r
}

// directUpload pushes the content through the form endpoint: one POST, no
// fingerprinting. Suited to small files and callers that must not disclose
// the content hash before transfer.
func (u *Uploader) directUpload(ctx context.Context, src *Source, opts Options) (*Result, error) {
	init, err := u.client.SampleInitUpload(ctx, src.Name(), src.Size(), opts.DirID)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := map[string]string{
		"name":                  src.Name(),
		"key":                   init.Object,
		"policy":                init.Policy,
		"OSSAccessKeyId":        init.AccessID,
		"success_action_status": "200",
		"callback":              init.Callback,
		"signature":             init.Signature,
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("upload: building form: %w", err)
		}
	}
	fw, err := form.CreateFormFile("file", src.Name())
	if err != nil {
		return nil, fmt.Errorf("upload: building form: %w", err)
	}
	r, err := src.ReaderAt(0)
	if err != nil {
		return nil, err
	}
	counted := &progressReader{r: r, total: src.Size(), progress: opts.Progress}
	if _, err := io.Copy(fw, counted); err != nil {
		return nil, fmt.Errorf("upload: copying content: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("upload: building form: %w", err)
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, init.Host, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := u.transfer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: form upload: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("upload: reading form response: %w", err)
	}
	if resp.StatusCode != nethttp.StatusOK {
		return nil, fmt.Errorf("upload: form upload returned %d: %s", resp.StatusCode, raw)
	}

	var data models.CallbackData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("upload: decoding form response %q: %w", raw, err)
	}
	if !data.State {
		return nil, fmt.Errorf("upload: form upload rejected: code %d: %s", data.Code, data.Message)
	}
	return resultFromCallback(src, data.PickCode, &data), nil
}
