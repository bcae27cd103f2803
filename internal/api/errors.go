package api

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped from job status codes.
var (
	// ErrBadArchive - the archive cannot be parsed (decompress status 0)
	ErrBadArchive = errors.New("unsupported or corrupt archive")
	// ErrWrongPassword - missing or wrong archive secret (decompress status 6)
	ErrWrongPassword = errors.New("wrong archive password")
	// ErrUnknownJob - the server has no record of the job id
	ErrUnknownJob = errors.New("unknown job id")
	// ErrNotLoggedIn - the session cookie is missing or rejected
	ErrNotLoggedIn = errors.New("not logged in")
)

// ProtocolError is a response the drive answered but refused: the envelope
// state flag was false, or a payload carried an undefined status. Raw keeps
// the body for diagnosis.
type ProtocolError struct {
	Endpoint string
	Errno    int
	Message  string
	Raw      []byte
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("api: %s refused", e.Endpoint)
	if e.Errno != 0 {
		msg += fmt.Sprintf(" (errno %d)", e.Errno)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}
