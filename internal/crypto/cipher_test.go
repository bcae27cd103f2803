package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestECDHCipherRoundTrip(t *testing.T) {
	c, err := NewECDHCipher()
	if err != nil {
		t.Fatalf("NewECDHCipher: %v", err)
	}

	cases := [][]byte{
		[]byte("{}"),
		[]byte(`{"fileid":"2FE2C2B1A06273E2FBCB36FBE2D8B70DA4AF1425","filesize":"1024"}`),
		bytes.Repeat([]byte{0xAB}, 16), // exact block, forces a full padding block
	}
	for _, plaintext := range cases {
		enc, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if bytes.Contains(enc, plaintext) && len(plaintext) > 2 {
			t.Errorf("ciphertext leaks plaintext")
		}
		dec, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(dec, plaintext) {
			t.Errorf("round trip mismatch: %q vs %q", dec, plaintext)
		}
	}
}

func TestECDHCipherTokenDecodes(t *testing.T) {
	c, err := NewECDHCipher()
	if err != nil {
		t.Fatalf("NewECDHCipher: %v", err)
	}

	tok, err := c.EncodeToken(1700000000)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(tok)
	if err != nil {
		t.Fatalf("token is not valid base64: %v", err)
	}
	// length prefix + 32-byte key + tag + timestamp + trailer + crc
	if len(raw) != 1+32+2+4+2+4 {
		t.Errorf("unexpected token length %d", len(raw))
	}
	if int(raw[0]) != 32 {
		t.Errorf("length prefix = %d, want 32", raw[0])
	}
}

func TestECDHCipherDecryptRejectsGarbage(t *testing.T) {
	c, err := NewECDHCipher()
	if err != nil {
		t.Fatalf("NewECDHCipher: %v", err)
	}

	if _, err := c.Decrypt([]byte("short")); err == nil {
		t.Errorf("expected error on non-block-aligned input")
	}
	if _, err := c.Decrypt(nil); err == nil {
		t.Errorf("expected error on empty input")
	}
}

func TestPlaintextCipher(t *testing.T) {
	var c Plaintext

	in := []byte("hello")
	enc, _ := c.Encrypt(in)
	dec, _ := c.Decrypt(enc)
	if !bytes.Equal(dec, in) {
		t.Errorf("plaintext cipher must be identity")
	}

	tok, err := c.EncodeToken(42)
	if err != nil || tok == "" {
		t.Errorf("EncodeToken: %q, %v", tok, err)
	}
}
