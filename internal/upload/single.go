package upload

import (
	"context"
	"io"

	httpx "github.com/cloudpan/pan115/internal/http"
	"github.com/cloudpan/pan115/internal/models"
	"github.com/cloudpan/pan115/internal/oss"
)

// ProgressFunc receives transfer progress. total is the content size;
// transferred is cumulative, and rewinds after a retry are not subtracted.
type ProgressFunc func(transferred, total int64)

// progressReader counts bytes as they leave.
type progressReader struct {
	r        io.Reader
	total    int64
	count    int64
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.count += int64(n)
		if p.progress != nil {
			p.progress(p.count, p.total)
		}
	}
	return n, err
}

// putSingle sends the whole content in one request. Each retry rewinds the
// source and replays from the start; a credential failure refreshes the
// storage token first.
func putSingle(ctx context.Context, ossc *oss.Client, ticket *Ticket, src *Source, refresh func(context.Context) error, progress ProgressFunc) (*models.CallbackData, error) {
	retryCfg := httpx.DefaultConfig()
	retryCfg.CredentialRefresh = refresh

	counted := &progressReader{total: src.Size(), progress: progress}

	var data *models.CallbackData
	err := httpx.ExecuteWithRetry(ctx, retryCfg, func() error {
		r, err := src.ReaderAt(0)
		if err != nil {
			return err
		}
		counted.r = r

		d, err := ossc.PutObject(ctx, ticket.Bucket, ticket.Object, counted, src.Size(), &ticket.Callback)
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
