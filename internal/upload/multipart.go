package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/cloudpan/pan115/internal/constants"
	httpx "github.com/cloudpan/pan115/internal/http"
	"github.com/cloudpan/pan115/internal/logging"
	"github.com/cloudpan/pan115/internal/models"
	"github.com/cloudpan/pan115/internal/oss"
)

// ErrResumeInconsistent means the parts stored for a resumed session cannot
// have been produced with the current part size or content. The session
// should be aborted and restarted from scratch.
var ErrResumeInconsistent = errors.New("stored parts inconsistent with part size")

// normalizePartSize clamps the part size and widens it when the content would
// otherwise exceed the store's part-count limit.
func normalizePartSize(partSize, total int64) int64 {
	if partSize <= 0 {
		partSize = constants.DefaultPartSize
	}
	if partSize < constants.MinPartSize {
		partSize = constants.MinPartSize
	}
	for total/partSize >= constants.MaxPartCount {
		partSize *= 2
	}
	return partSize
}

// acceptResumedParts decides which stored parts survive a resume. Parts must
// be contiguous from 1; enumeration stops at the first part shorter than
// partSize. A short or oversized part with more parts behind it cannot belong
// to this session.
func acceptResumedParts(listed []oss.Part, partSize int64) ([]oss.Part, error) {
	sort.Slice(listed, func(i, j int) bool { return listed[i].PartNumber < listed[j].PartNumber })

	var accepted []oss.Part
	for i, p := range listed {
		if p.PartNumber != i+1 {
			return nil, fmt.Errorf("%w: part %d listed at position %d", ErrResumeInconsistent, p.PartNumber, i+1)
		}
		if p.Size == partSize {
			accepted = append(accepted, p)
			continue
		}
		if p.Size > partSize || i != len(listed)-1 {
			return nil, fmt.Errorf("%w: part %d has size %d", ErrResumeInconsistent, p.PartNumber, p.Size)
		}
		// Trailing short part: re-uploaded rather than trusted.
		break
	}
	return accepted, nil
}

// runMultipart transfers the content in parts and completes the session.
// resumeID non-empty resumes an existing session by listing its stored parts
// and skipping the bytes they cover.
//
// The part loop stops at the first short read. When the content is an exact
// multiple of the part size, the probe read after the last full part comes
// back empty; that empty part is still sent, confirming end of stream to the
// store, but is left out of the completion manifest.
func runMultipart(ctx context.Context, ossc *oss.Client, ticket *Ticket, src *Source, partSize int64, resumeID string, refresh func(context.Context) error, progress ProgressFunc, log *logging.Logger) (*models.CallbackData, error) {
	partSize = normalizePartSize(partSize, src.Size())

	uploadID := resumeID
	var manifest []oss.Part
	var offset int64

	if uploadID == "" {
		id, err := ossc.InitiateMultipart(ctx, ticket.Bucket, ticket.Object)
		if err != nil {
			return nil, err
		}
		uploadID = id
	} else {
		listed, err := ossc.ListParts(ctx, ticket.Bucket, ticket.Object, uploadID)
		if err != nil {
			return nil, err
		}
		manifest, err = acceptResumedParts(listed, partSize)
		if err != nil {
			return nil, err
		}
		offset = int64(len(manifest)) * partSize
		if offset > src.Size() {
			return nil, fmt.Errorf("%w: %d stored parts cover %d bytes of a %d byte file",
				ErrResumeInconsistent, len(manifest), offset, src.Size())
		}
		if log != nil {
			log.Infof("resuming %s: %d parts stored, continuing at byte %d", src.Name(), len(manifest), offset)
		}
		if progress != nil && offset > 0 {
			progress(offset, src.Size())
		}
	}

	retryCfg := httpx.DefaultConfig()
	retryCfg.CredentialRefresh = refresh

	buf := make([]byte, partSize)
	sent := offset
	for partNumber := len(manifest) + 1; ; partNumber++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r, err := src.ReaderAt(offset)
		if err != nil {
			return nil, err
		}
		n, err := io.ReadFull(r, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("upload: reading part %d: %w", partNumber, err)
		}

		chunk := buf[:n]
		var part oss.Part
		uploadErr := httpx.ExecuteWithRetry(ctx, retryCfg, func() error {
			p, err := ossc.UploadPart(ctx, ticket.Bucket, ticket.Object, uploadID,
				partNumber, bytes.NewReader(chunk), int64(n))
			if err != nil {
				return err
			}
			part = p
			return nil
		})
		if uploadErr != nil {
			return nil, uploadErr
		}

		if n > 0 {
			manifest = append(manifest, part)
			offset += int64(n)
			sent += int64(n)
			if progress != nil {
				progress(sent, src.Size())
			}
		}
		if int64(n) < partSize {
			break
		}
	}

	var data *models.CallbackData
	err := httpx.ExecuteWithRetry(ctx, retryCfg, func() error {
		d, err := ossc.CompleteMultipart(ctx, ticket.Bucket, ticket.Object, uploadID, manifest, &ticket.Callback)
		if err != nil {
			return err
		}
		data = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
