// Package upload implements the transfer pipeline: content fingerprinting,
// fast-upload negotiation, and the single-shot and multipart paths to the
// object store.
package upload

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cloudpan/pan115/internal/constants"
)

// Source is seekable upload content with a stable identity. The digest is a
// property of the bytes alone, so a file, a byte slice, or a spooled stream
// with the same content negotiate identically.
type Source struct {
	name string
	size int64
	r    io.ReadSeeker

	digest  string
	cleanup func() error
}

// FromFile opens path as an upload source. The caller owns Close.
func FromFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("upload: %s is a directory", path)
	}

	return &Source{
		name:    filepath.Base(path),
		size:    info.Size(),
		r:       f,
		cleanup: f.Close,
	}, nil
}

// FromBytes wraps an in-memory payload.
func FromBytes(name string, data []byte) *Source {
	return &Source{
		name: name,
		size: int64(len(data)),
		r:    strings.NewReader(string(data)),
	}
}

// FromReader spools a non-seekable stream to a temporary file, hashing as it
// copies. The resulting source supports range digests and resume like any
// file. Close removes the spool file.
func FromReader(name string, r io.Reader) (*Source, error) {
	tmp, err := os.CreateTemp("", "pan115-spool-*")
	if err != nil {
		return nil, fmt.Errorf("upload: creating spool file: %w", err)
	}
	cleanup := func() error {
		tmp.Close()
		return os.Remove(tmp.Name())
	}

	h := sha1.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("upload: spooling stream: %w", err)
	}

	return &Source{
		name:    name,
		size:    size,
		r:       tmp,
		digest:  strings.ToUpper(hex.EncodeToString(h.Sum(nil))),
		cleanup: cleanup,
	}, nil
}

// FromURL fetches rawURL and spools the body. name "" takes the last path
// segment.
func FromURL(ctx context.Context, hc *nethttp.Client, rawURL, name string) (*Source, error) {
	if hc == nil {
		hc = nethttp.DefaultClient
	}
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		return nil, fmt.Errorf("upload: fetching %s: status %d", rawURL, resp.StatusCode)
	}

	if name == "" {
		name = filepath.Base(req.URL.Path)
		if name == "/" || name == "." {
			name = "download"
		}
	}
	return FromReader(name, resp.Body)
}

// Name returns the filename presented to the drive.
func (s *Source) Name() string { return s.name }

// Size returns the content length in bytes.
func (s *Source) Size() int64 { return s.size }

// Close releases the underlying file or spool.
func (s *Source) Close() error {
	if s.cleanup == nil {
		return nil
	}
	err := s.cleanup()
	s.cleanup = nil
	return err
}

// SetDigest seeds the cached content digest so negotiation can start without
// reading the bytes. digest is the hex SHA-1 of the full content; the caller
// vouches for it.
func (s *Source) SetDigest(digest string) {
	s.digest = strings.ToUpper(digest)
}

// Digest returns the uppercase hex SHA-1 of the full content, computing it on
// first use. The read position is restored to the start.
func (s *Source) Digest(ctx context.Context) (string, error) {
	if s.digest != "" {
		return s.digest, nil
	}

	sum, err := s.hashRange(ctx, 0, s.size-1)
	if err != nil {
		return "", err
	}
	s.digest = sum
	return sum, nil
}

// RangeDigest returns the uppercase hex SHA-1 of the inclusive byte range
// start-end. Used to answer negotiation challenges.
func (s *Source) RangeDigest(ctx context.Context, start, end int64) (string, error) {
	if start < 0 || end >= s.size || start > end {
		return "", fmt.Errorf("upload: range %d-%d outside content of %d bytes", start, end, s.size)
	}
	return s.hashRange(ctx, start, end)
}

func (s *Source) hashRange(ctx context.Context, start, end int64) (string, error) {
	if _, err := s.r.Seek(start, io.SeekStart); err != nil {
		return "", fmt.Errorf("upload: seeking to %d: %w", start, err)
	}

	h := sha1.New()
	remaining := end - start + 1
	buf := make([]byte, constants.DigestChunkSize)
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n := int64(len(buf))
		if n > remaining {
			n = remaining
		}
		read, err := io.ReadFull(s.r, buf[:n])
		if read > 0 {
			h.Write(buf[:read])
			remaining -= int64(read)
		}
		if err != nil {
			return "", fmt.Errorf("upload: hashing content: %w", err)
		}
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// ReaderAt returns a reader positioned at offset.
func (s *Source) ReaderAt(offset int64) (io.Reader, error) {
	if _, err := s.r.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("upload: seeking to %d: %w", offset, err)
	}
	return s.r, nil
}

// ParseByteRange parses an inclusive "start-end" range as used by the
// negotiation challenge.
func ParseByteRange(spec string) (start, end int64, err error) {
	dash := strings.IndexByte(spec, '-')
	if dash <= 0 || dash == len(spec)-1 {
		return 0, 0, fmt.Errorf("upload: malformed byte range %q", spec)
	}
	start, err = strconv.ParseInt(spec[:dash], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("upload: malformed byte range %q", spec)
	}
	end, err = strconv.ParseInt(spec[dash+1:], 10, 64)
	if err != nil || end < start {
		return 0, 0, fmt.Errorf("upload: malformed byte range %q", spec)
	}
	return start, end, nil
}
