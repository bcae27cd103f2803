package upload

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// unreadableContent fails every access; sources seeded with a digest must not
// touch it.
type unreadableContent struct{}

func (unreadableContent) Read([]byte) (int, error) {
	return 0, errors.New("content was read")
}

func (unreadableContent) Seek(int64, int) (int64, error) {
	return 0, errors.New("content was seeked")
}

func sha1Upper(b []byte) string {
	sum := sha1.Sum(b)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func TestDigestKnownValue(t *testing.T) {
	src := FromBytes("hello.txt", []byte("hello world"))

	got, err := src.Digest(context.Background())
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if got != "2AAE6C35C94FCFB415DBE95F408B9CE91EE846ED" {
		t.Errorf("digest = %s", got)
	}
}

func TestDigestSameAcrossRepresentations(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	ctx := context.Background()

	fromBytes := FromBytes("x", content)

	path := filepath.Join(t.TempDir(), "x.bin")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	fromFile, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	defer fromFile.Close()

	fromReader, err := FromReader("x", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	defer fromReader.Close()

	want := sha1Upper(content)
	for name, src := range map[string]*Source{"bytes": fromBytes, "file": fromFile, "stream": fromReader} {
		got, err := src.Digest(ctx)
		if err != nil {
			t.Fatalf("%s digest: %v", name, err)
		}
		if got != want {
			t.Errorf("%s digest = %s, want %s", name, got, want)
		}
		if src.Size() != int64(len(content)) {
			t.Errorf("%s size = %d", name, src.Size())
		}
	}
}

func TestSetDigestSkipsContentRead(t *testing.T) {
	src := &Source{name: "a.bin", size: 4096, r: unreadableContent{}}
	src.SetDigest("2aae6c35c94fcfb415dbe95f408b9ce91ee846ed")

	got, err := src.Digest(context.Background())
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if got != "2AAE6C35C94FCFB415DBE95F408B9CE91EE846ED" {
		t.Errorf("digest = %s, want the seeded value uppercased", got)
	}
}

func TestRangeDigest(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")
	src := FromBytes("fox", content)
	ctx := context.Background()

	got, err := src.RangeDigest(ctx, 4, 8)
	if err != nil {
		t.Fatalf("RangeDigest: %v", err)
	}
	if want := sha1Upper(content[4:9]); got != want {
		t.Errorf("range digest = %s, want %s", got, want)
	}

	// Range digests must not disturb the cached full digest.
	full, err := src.Digest(ctx)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if full != sha1Upper(content) {
		t.Errorf("full digest = %s", full)
	}
	again, _ := src.RangeDigest(ctx, 0, int64(len(content))-1)
	if again != full {
		t.Errorf("full-range digest %s != digest %s", again, full)
	}
}

func TestRangeDigestBounds(t *testing.T) {
	src := FromBytes("x", []byte("abc"))
	ctx := context.Background()

	cases := []struct{ start, end int64 }{{-1, 1}, {0, 3}, {2, 1}}
	for _, tc := range cases {
		if _, err := src.RangeDigest(ctx, tc.start, tc.end); err == nil {
			t.Errorf("RangeDigest(%d, %d) accepted out-of-bounds range", tc.start, tc.end)
		}
	}
}

func TestFromReaderSpoolsAndCleansUp(t *testing.T) {
	src, err := FromReader("s", strings.NewReader("spooled content"))
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}

	// Spooled streams hash during the copy; no extra pass needed.
	got, err := src.Digest(context.Background())
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if got != sha1Upper([]byte("spooled content")) {
		t.Errorf("digest = %s", got)
	}

	// Spool must be seekable for resume and range proofs.
	r, err := src.ReaderAt(8)
	if err != nil {
		t.Fatalf("ReaderAt: %v", err)
	}
	rest := make([]byte, 7)
	if _, err := io.ReadFull(r, rest); err != nil || string(rest) != "content" {
		t.Errorf("read from offset = %q, %v", rest, err)
	}

	if err := src.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestParseByteRange(t *testing.T) {
	start, end, err := ParseByteRange("2576-2665")
	if err != nil || start != 2576 || end != 2665 {
		t.Errorf("ParseByteRange = %d, %d, %v", start, end, err)
	}

	for _, bad := range []string{"", "-", "5-", "-5", "abc-def", "9-3"} {
		if _, _, err := ParseByteRange(bad); err == nil {
			t.Errorf("ParseByteRange(%q) accepted malformed input", bad)
		}
	}
}

func TestFromFileRejectsDirectory(t *testing.T) {
	if _, err := FromFile(t.TempDir()); err == nil {
		t.Errorf("expected error opening a directory")
	}
}
