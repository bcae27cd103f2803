// Package crypto implements the fingerprint signatures and the session cipher
// used by the upload negotiation endpoint.
package crypto

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/cloudpan/pan115/internal/constants"
)

// Credential is the per-account key pair behind upload signatures.
type Credential struct {
	UserID  string
	UserKey string
}

// UploadSignature derives the account-bound negotiation signature.
//
// The inner SHA-1 binds the account, the content digest, and the destination;
// the outer SHA-1 mixes in the account key. digest must be the uppercase hex
// SHA-1 of the full content, target a destination tag like "U_1_0".
func UploadSignature(cred Credential, digest, target string) string {
	inner := sha1.Sum([]byte(cred.UserID + digest + target + "0"))
	innerHex := hex.EncodeToString(inner[:])
	outer := sha1.Sum([]byte(cred.UserKey + innerHex + "000000"))
	return strings.ToUpper(hex.EncodeToString(outer[:]))
}

// UploadToken derives the per-request token sent alongside the signature. The
// timestamp must match the t= form field of the same request; signKey and
// signVal are empty on the first pass and carry the range-proof challenge on
// the second.
func UploadToken(digest string, size int64, signKey, signVal, userID string, timestamp int64, appVersion string) string {
	userIDMD5 := md5.Sum([]byte(userID))

	var b strings.Builder
	b.WriteString(constants.TokenSalt)
	b.WriteString(digest)
	b.WriteString(strconv.FormatInt(size, 10))
	b.WriteString(signKey)
	b.WriteString(signVal)
	b.WriteString(userID)
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteString(hex.EncodeToString(userIDMD5[:]))
	b.WriteString(appVersion)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
