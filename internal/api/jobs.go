package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cloudpan/pan115/internal/models"
)

// ExportDir starts a directory-tree export and returns the job id. The
// generated tree file lands under target; layerLimit > 0 caps the depth.
func (c *Client) ExportDir(ctx context.Context, fileIDs []string, target string, layerLimit int) (string, error) {
	form := url.Values{
		"file_ids": {strings.Join(fileIDs, ",")},
		"target":   {target},
	}
	if layerLimit > 0 {
		form.Set("layer_limit", strconv.Itoa(layerLimit))
	}

	data, err := c.postData(ctx, "files/export_dir", form)
	if err != nil {
		return "", err
	}

	var result models.ExportDirData
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("api: decoding export response: %w", err)
	}
	if result.ExportID == "" {
		return "", &ProtocolError{Endpoint: "files/export_dir", Message: "no export id", Raw: data}
	}
	return result.ExportID.String(), nil
}

// emptyPayload reports whether a data field carries no result yet.
func emptyPayload(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "", "{}", "[]", "null", `""`:
		return true
	}
	return false
}

// ExportDirStatus probes an export job. done is false while the server is
// still walking the tree; once true, the result names the generated file.
func (c *Client) ExportDirStatus(ctx context.Context, exportID string) (result *models.ExportDirResult, done bool, err error) {
	data, err := c.getData(ctx, "files/export_dir", url.Values{"export_id": {exportID}})
	if err != nil {
		return nil, false, err
	}
	if emptyPayload(data) {
		return nil, false, nil
	}

	var r models.ExportDirResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, fmt.Errorf("api: decoding export status: %w", err)
	}
	return &r, true, nil
}

// ExtractPush asks the server to decompress an archive so its listing becomes
// browsable. secret is the archive password, empty for none.
func (c *Client) ExtractPush(ctx context.Context, pickCode, secret string) error {
	form := url.Values{"pick_code": {pickCode}}
	if secret != "" {
		form.Set("secret", secret)
	}
	_, err := c.postData(ctx, "files/push_extract", form)
	return err
}

// ExtractPushProgress probes a decompress job.
func (c *Client) ExtractPushProgress(ctx context.Context, pickCode string) (*models.ExtractStatus, error) {
	data, err := c.getData(ctx, "files/push_extract", url.Values{"pick_code": {pickCode}})
	if err != nil {
		return nil, err
	}

	var payload models.PushExtractData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("api: decoding decompress progress: %w", err)
	}
	return &payload.ExtractStatus, nil
}

// ExtractAddFile starts extracting archive entries into the folder toPID.
// Paths ending in "/" are treated as directories inside the archive. Returns
// the job id.
func (c *Client) ExtractAddFile(ctx context.Context, pickCode string, paths []string, toPID string) (string, error) {
	if toPID == "" {
		toPID = "0"
	}
	form := url.Values{
		"pick_code": {pickCode},
		"to_pid":    {toPID},
		"paths":     {"文件"},
	}
	for _, p := range paths {
		field := "extract_file[]"
		if strings.HasSuffix(p, "/") {
			field = "extract_dir[]"
		}
		form.Add(field, strings.Trim(p, "/"))
	}

	data, err := c.postData(ctx, "files/add_extract_file", form)
	if err != nil {
		return "", err
	}

	var result models.ExtractAddData
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("api: decoding extract response: %w", err)
	}
	if result.ExtractID == "" {
		return "", &ProtocolError{Endpoint: "files/add_extract_file", Message: "no extract id", Raw: data}
	}
	return result.ExtractID.String(), nil
}

// ExtractProgress probes an extract-to-folder job. An empty payload means the
// server has no record of the job id.
func (c *Client) ExtractProgress(ctx context.Context, extractID string) (*models.ExtractProgressData, error) {
	data, err := c.getData(ctx, "files/add_extract_file", url.Values{"extract_id": {extractID}})
	if err != nil {
		return nil, err
	}
	if emptyPayload(data) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, extractID)
	}

	var result models.ExtractProgressData
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("api: decoding extract progress: %w", err)
	}
	return &result, nil
}

// ExtractList returns the full listing of dir inside a decompressed archive,
// following next_marker pagination to the end. dir "" lists the root.
func (c *Client) ExtractList(ctx context.Context, pickCode, dir string) ([]models.ExtractEntry, error) {
	var entries []models.ExtractEntry
	marker := ""

	for {
		query := url.Values{
			"pick_code":  {pickCode},
			"file_name":  {strings.Trim(dir, "/")},
			"paths":      {"文件"},
			"page_count": {"999"},
		}
		if marker != "" {
			query.Set("next_marker", marker)
		}

		data, err := c.getData(ctx, "files/extract_info", query)
		if err != nil {
			return nil, err
		}

		var page models.ExtractListData
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("api: decoding archive listing: %w", err)
		}

		entries = append(entries, page.List...)
		if page.NextMarker == "" {
			return entries, nil
		}
		marker = page.NextMarker
	}
}
