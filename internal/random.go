package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"time"
)

// OpaqueTokenSize is the number of random bytes behind every opaque token.
const OpaqueTokenSize = 32

// EncodedTokenLen is the length of an encoded opaque token.
var EncodedTokenLen = base64.RawURLEncoding.EncodedLen(OpaqueTokenSize)

// NewOpaqueToken returns 256 bits from crypto/rand, base64url without padding.
func NewOpaqueToken() (string, error) {
	var raw [OpaqueTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// WellFormedToken reports whether token decodes to exactly OpaqueTokenSize bytes.
func WellFormedToken(token string) bool {
	if len(token) != EncodedTokenLen {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil && len(raw) == OpaqueTokenSize
}

// HashToken is the at-rest form of secret tokens: hex(sha256(token)).
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RandomDuration returns a uniformly random duration in [min, max].
func RandomDuration(min, max time.Duration) (time.Duration, error) {
	if min < 0 || max < min {
		return 0, errors.New("invalid duration range")
	}
	span := int64(max-min) + 1
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}
	return min + time.Duration(n.Int64()), nil
}
