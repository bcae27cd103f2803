package api

import (
	"context"
	"fmt"

	"github.com/cloudpan/pan115/internal/models"
	"github.com/cloudpan/pan115/internal/poller"
	"github.com/cloudpan/pan115/internal/task"
)

// ExportDirFuture starts a directory-tree export and returns a handle that
// settles once the tree file exists. Cancelling the handle stops polling; the
// server finishes the export regardless.
func (c *Client) ExportDirFuture(ctx context.Context, fileIDs []string, target string, layerLimit int) (*task.Task[*models.ExportDirResult], error) {
	exportID, err := c.ExportDir(ctx, fileIDs, target, layerLimit)
	if err != nil {
		return nil, err
	}

	probe := func(ctx context.Context) (bool, int, *models.ExportDirResult, error) {
		result, done, err := c.ExportDirStatus(ctx, exportID)
		if err != nil {
			return false, 0, nil, err
		}
		// The status endpoint has no progress figure; hold at zero until done.
		return done, 0, result, nil
	}
	return poller.Start(ctx, 0, probe), nil
}

// ExtractPushFuture starts decompressing an archive and returns a handle that
// settles once its listing is browsable. Archive-format and password problems
// surface as ErrBadArchive and ErrWrongPassword.
func (c *Client) ExtractPushFuture(ctx context.Context, pickCode, secret string) (*task.Task[*models.ExtractStatus], error) {
	if err := c.ExtractPush(ctx, pickCode, secret); err != nil {
		return nil, err
	}

	probe := func(ctx context.Context) (bool, int, *models.ExtractStatus, error) {
		status, err := c.ExtractPushProgress(ctx, pickCode)
		if err != nil {
			return false, 0, nil, err
		}
		if status.Progress == 100 {
			return true, 100, status, nil
		}
		switch status.UnzipStatus {
		case models.UnzipStatusPending, models.UnzipStatusRunning, models.UnzipStatusDone:
			return false, status.Progress, nil, nil
		case models.UnzipStatusBadFormat:
			return false, 0, nil, fmt.Errorf("%w: %s", ErrBadArchive, pickCode)
		case models.UnzipStatusWrongPassword:
			return false, 0, nil, fmt.Errorf("%w: %s", ErrWrongPassword, pickCode)
		default:
			return false, 0, nil, fmt.Errorf("api: undefined decompress status %d for %s", status.UnzipStatus, pickCode)
		}
	}
	return poller.Start(ctx, 0, probe), nil
}

// ExtractFileFuture starts extracting paths from an archive into toPID and
// returns a handle that settles when the copy finishes. Empty paths extracts
// everything in the archive root.
func (c *Client) ExtractFileFuture(ctx context.Context, pickCode string, paths []string, toPID string) (*task.Task[*models.ExtractProgressData], error) {
	if len(paths) == 0 {
		entries, err := c.ExtractList(ctx, pickCode, "")
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			p := e.FileName
			if e.FileCategory == 0 {
				p += "/"
			}
			paths = append(paths, p)
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("api: archive %s has no entries to extract", pickCode)
		}
	}

	extractID, err := c.ExtractAddFile(ctx, pickCode, paths, toPID)
	if err != nil {
		return nil, err
	}

	probe := func(ctx context.Context) (bool, int, *models.ExtractProgressData, error) {
		result, err := c.ExtractProgress(ctx, extractID)
		if err != nil {
			return false, 0, nil, err
		}
		if result.Percent == 100 {
			return true, 100, result, nil
		}
		return false, result.Percent, nil, nil
	}
	return poller.Start(ctx, 0, probe), nil
}
