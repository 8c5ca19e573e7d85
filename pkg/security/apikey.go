package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	apperrors "secure-user-api/pkg/errors"
)

// DefaultAPIKeyHeader is used when no header name is configured.
const DefaultAPIKeyHeader = "X-API-Key"

// KeyVerifier checks caller credentials against the set of active API keys.
// Several keys may be active at once so that keys can be rotated.
type KeyVerifier struct {
	digests [][sha256.Size]byte
}

// NewKeyVerifier builds a verifier from the active keys. Blank entries are ignored.
func NewKeyVerifier(keys []string) *KeyVerifier {
	v := &KeyVerifier{}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		v.digests = append(v.digests, sha256.Sum256([]byte(k)))
	}
	return v
}

// KeyCount returns the number of active keys.
func (v *KeyVerifier) KeyCount() int {
	return len(v.digests)
}

// Verify returns nil when candidate matches one of the active keys.
//
// Both sides are hashed to a fixed length before the constant-time comparison and
// every key is compared, so neither the key bytes nor their lengths leak through timing.
func (v *KeyVerifier) Verify(candidate string) error {
	if len(v.digests) == 0 {
		return apperrors.ErrServerMisconfigured
	}
	if candidate == "" {
		return apperrors.ErrUnauthenticated
	}

	sum := sha256.Sum256([]byte(candidate))
	match := 0
	for i := range v.digests {
		match |= subtle.ConstantTimeCompare(sum[:], v.digests[i][:])
	}
	if match != 1 {
		return apperrors.ErrInvalidCredential
	}
	return nil
}

// APIKeyBytes is the entropy of a generated key.
const APIKeyBytes = 32

// GenerateAPIKey returns a random hex encoded key suitable for ACTIVE_API_KEYS.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, APIKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
