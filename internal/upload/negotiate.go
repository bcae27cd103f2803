package upload

import (
	"context"
	"fmt"

	"github.com/cloudpan/pan115/internal/api"
	"github.com/cloudpan/pan115/internal/logging"
	"github.com/cloudpan/pan115/internal/models"
)

// Ticket is the outcome of a fast-upload negotiation. Either the content
// matched an existing copy (Matched, PickCode) or the drive issued transfer
// coordinates (Bucket, Object, Callback).
type Ticket struct {
	Matched  bool
	PickCode string

	Bucket   string
	Object   string
	Callback models.Callback
}

// Negotiator runs the fingerprint handshake against the drive.
type Negotiator struct {
	client *api.Client
	log    *logging.Logger
}

// NewNegotiator wires a negotiator to the API client.
func NewNegotiator(client *api.Client, log *logging.Logger) *Negotiator {
	return &Negotiator{client: client, log: log}
}

// Negotiate offers the content fingerprint for dirID. A range-proof challenge
// is answered exactly once; a second challenge in the same negotiation is a
// protocol violation.
func (n *Negotiator) Negotiate(ctx context.Context, src *Source, dirID string) (*Ticket, error) {
	digest, err := src.Digest(ctx)
	if err != nil {
		return nil, err
	}

	req := api.InitUploadRequest{
		Filename: src.Name(),
		Size:     src.Size(),
		Digest:   digest,
		Target:   api.Target(dirID),
	}

	resp, err := n.client.InitUpload(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.NeedsSignCheck() {
		start, end, err := ParseByteRange(resp.SignCheck)
		if err != nil {
			return nil, fmt.Errorf("upload: challenge %q: %w", resp.SignCheck, err)
		}
		proof, err := src.RangeDigest(ctx, start, end)
		if err != nil {
			return nil, err
		}
		if n.log != nil {
			n.log.Debugf("answering range proof %s for %s", resp.SignCheck, src.Name())
		}

		req.SignKey = resp.SignKey
		req.SignVal = proof
		resp, err = n.client.InitUpload(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.NeedsSignCheck() {
			return nil, fmt.Errorf("upload: server repeated range challenge for %s (status %d/%d)",
				src.Name(), resp.Status, resp.StatusCode)
		}
	}

	switch {
	case resp.Matched():
		return &Ticket{Matched: true, PickCode: resp.PickCode}, nil

	case resp.NeedsUpload():
		if resp.Bucket == "" || resp.Object == "" {
			return nil, fmt.Errorf("upload: negotiation issued no transfer coordinates for %s", src.Name())
		}
		return &Ticket{
			PickCode: resp.PickCode,
			Bucket:   resp.Bucket,
			Object:   resp.Object,
			Callback: resp.Callback,
		}, nil

	default:
		return nil, fmt.Errorf("upload: negotiation for %s failed: status %d/%d %s",
			src.Name(), resp.Status, resp.StatusCode, resp.StatusMsg)
	}
}
