// Package crypto secures bank account numbers before they are stored.
package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/blake2b"
)

const (
	// MaxKeySize is the largest key blake2b accepts.
	MaxKeySize = blake2b.Size
	// RoutingDigits is the length of a padded routing number.
	RoutingDigits = 9
)

var ErrInvalidKeySize = errors.New("hash key must be at most 64 bytes")

// AccountHasher derives the secured form of a bank account. The same routing
// and account number always produce the same hash for a given key, which is
// what duplicate detection relies on.
type AccountHasher struct {
	key []byte
}

// NewAccountHasher creates a hasher. An empty key gives an unkeyed hash.
func NewAccountHasher(key []byte) (*AccountHasher, error) {
	if len(key) > MaxKeySize {
		return nil, ErrInvalidKeySize
	}
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	return &AccountHasher{key: keyCopy}, nil
}

// NewAccountHasherFromString accepts a base64 key, or uses the raw string
// when it is not valid base64.
func NewAccountHasherFromString(key string) (*AccountHasher, error) {
	if key == "" {
		return NewAccountHasher(nil)
	}
	if decoded, err := base64.StdEncoding.DecodeString(key); err == nil {
		return NewAccountHasher(decoded)
	}
	return NewAccountHasher([]byte(key))
}

// Secure returns the hex encoded hash of "routing|account".
func (h *AccountHasher) Secure(routing, account string) (string, error) {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to create hash")
	}
	mac.Write([]byte(routing + "|" + account))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// NormalizeRouting strips spaces and left-pads the routing number to nine digits.
func NormalizeRouting(routing string) string {
	routing = strings.ReplaceAll(routing, " ", "")
	if routing == "" || len(routing) >= RoutingDigits {
		return routing
	}
	return strings.Repeat("0", RoutingDigits-len(routing)) + routing
}

// NormalizeAccount strips spaces from an account number.
func NormalizeAccount(account string) string {
	return strings.ReplaceAll(account, " ", "")
}

// Mask hides all but the last four characters.
func Mask(value string) string {
	if len(value) <= 4 {
		return value
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
