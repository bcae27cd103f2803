package models

import (
	"encoding/json"
)

// BasicResp is the envelope of every web API response. Data stays raw until
// the caller knows the payload shape.
type BasicResp struct {
	State    bool            `json:"state"`
	ErrorMsg string          `json:"error"`
	Errno    int             `json:"errno"`
	Data     json.RawMessage `json:"data"`
}

// ExportDirData is returned when a directory-tree export job is accepted.
type ExportDirData struct {
	ExportID json.Number `json:"export_id"`
}

// ExportDirResult is the terminal payload of a finished export job: the
// generated tree file. The status endpoint returns an empty object until the
// job completes.
type ExportDirResult struct {
	ExportID json.Number `json:"export_id"`
	FileID   string      `json:"file_id"`
	FileName string      `json:"file_name"`
	PickCode string      `json:"pick_code"`
}

// Archive decompression states reported by the extract endpoints.
const (
	// UnzipStatusBadFormat - the archive cannot be parsed
	UnzipStatusBadFormat = 0
	// UnzipStatusPending - queued, not started
	UnzipStatusPending = 1
	// UnzipStatusRunning - decompression in progress
	UnzipStatusRunning = 2
	// UnzipStatusDone - listing is browsable
	UnzipStatusDone = 4
	// UnzipStatusWrongPassword - archive secret missing or wrong
	UnzipStatusWrongPassword = 6
)

// ExtractStatus is the progress block of a decompress-to-listing job.
type ExtractStatus struct {
	Progress    int `json:"progress"`
	UnzipStatus int `json:"unzip_status"`
}

// PushExtractData wraps ExtractStatus in the push_extract progress response.
type PushExtractData struct {
	ExtractStatus ExtractStatus `json:"extract_status"`
}

// ExtractAddData is returned when an extract-to-folder job is accepted.
type ExtractAddData struct {
	ExtractID json.Number `json:"extract_id"`
}

// ExtractProgressData is the progress payload of an extract-to-folder job.
type ExtractProgressData struct {
	Percent int `json:"percent"`
}

// ExtractEntry is one row of an archive listing. FileCategory is non-zero for
// regular files and zero for directories.
type ExtractEntry struct {
	FileName     string `json:"file_name"`
	FileCategory int    `json:"file_category"`
}

// ExtractListData is one page of an archive listing.
type ExtractListData struct {
	List       []ExtractEntry `json:"list"`
	NextMarker string         `json:"next_marker"`
}
