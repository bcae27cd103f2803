package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Cipher protects the negotiation payload in transit. EncodeToken yields the
// key-exchange token carried as the k_ec query parameter; Encrypt and Decrypt
// transform the request and response bodies.
type Cipher interface {
	EncodeToken(timestamp int64) (string, error)
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// remotePublicKey is the negotiation endpoint's static X25519 public key.
var remotePublicKey = []byte{
	0x57, 0xa2, 0x92, 0x57, 0xcd, 0x23, 0x20, 0xe5,
	0xd6, 0xd1, 0x43, 0x32, 0x2f, 0xa4, 0xbb, 0x8a,
	0x3c, 0xf9, 0xd3, 0xcc, 0x62, 0x3e, 0xf5, 0xed,
	0xac, 0x62, 0xb7, 0x67, 0x8a, 0x89, 0xc9, 0x1a,
}

const tokenCRCSalt = "^j>WD3Kr?J2gLFjD4W2y@"

// ECDHCipher derives a per-session AES key from an ephemeral X25519 exchange
// with the endpoint's static key.
type ECDHCipher struct {
	pub    []byte
	aesKey []byte
	aesIV  []byte
}

// NewECDHCipher generates an ephemeral key pair and completes the exchange.
func NewECDHCipher() (*ECDHCipher, error) {
	curve := ecdh.X25519()

	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	remote, err := curve.NewPublicKey(remotePublicKey)
	if err != nil {
		return nil, fmt.Errorf("parsing remote key: %w", err)
	}
	shared, err := priv.ECDH(remote)
	if err != nil {
		return nil, fmt.Errorf("key exchange: %w", err)
	}

	return &ECDHCipher{
		pub:    priv.PublicKey().Bytes(),
		aesKey: shared[:16],
		aesIV:  shared[16:32],
	}, nil
}

// EncodeToken packs the session public key and the request timestamp into the
// base64 token the endpoint uses to reconstruct the shared secret. The layout
// interleaves the key halves around a version tag and ends with a salted CRC.
func (c *ECDHCipher) EncodeToken(timestamp int64) (string, error) {
	token := make([]byte, 0, 48)
	token = append(token, byte(len(c.pub)))
	token = append(token, c.pub[:16]...)
	token = append(token, 0x73, 0x3f)

	ts := make([]byte, 4)
	binary.LittleEndian.PutUint32(ts, uint32(timestamp))
	token = append(token, ts...)

	token = append(token, c.pub[16:]...)
	token = append(token, 0x01, 0x00)

	crc := crc32.ChecksumIEEE(append([]byte(tokenCRCSalt), token...))
	sum := make([]byte, 4)
	binary.LittleEndian.PutUint32(sum, crc)
	token = append(token, sum...)

	return base64.StdEncoding.EncodeToString(token), nil
}

// Encrypt applies AES-128-CBC with PKCS#7 padding.
func (c *ECDHCipher) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.aesKey)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.aesIV).CryptBlocks(out, padded)
	return out, nil
}

// Decrypt reverses Encrypt.
func (c *ECDHCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d not a block multiple", len(ciphertext))
	}

	block, err := aes.NewCipher(c.aesKey)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, c.aesIV).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}

// Plaintext is a pass-through Cipher for tests and local fixtures.
type Plaintext struct{}

func (Plaintext) EncodeToken(timestamp int64) (string, error) {
	ts := make([]byte, 8)
	binary.LittleEndian.PutUint64(ts, uint64(timestamp))
	return base64.StdEncoding.EncodeToString(ts), nil
}

func (Plaintext) Encrypt(plaintext []byte) ([]byte, error)  { return plaintext, nil }
func (Plaintext) Decrypt(ciphertext []byte) ([]byte, error) { return ciphertext, nil }
