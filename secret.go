package crossborder

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SecretLength is the length in bytes of the random preimage committed
// into every lock of a route. The ledger pads preimages to a full word in
// withdrawal events, so readers must truncate back to this length before
// comparing or propagating a secret.
const SecretLength = 16

// SecretHashPair is a random preimage and its SHA-256 hash, both
// hex-encoded. Generated exactly once per payment by the party adjacent
// to the final recipient; the hash is shared with every hop at setup
// time, the secret is withheld until the recipient claims.
type SecretHashPair struct {
	Secret string
	Hash   string
}

// NewSecretHashPair draws a fresh secret from crypto/rand.
func NewSecretHashPair() (SecretHashPair, error) {
	secret := make([]byte, SecretLength)
	if _, err := rand.Read(secret); err != nil {
		return SecretHashPair{}, fmt.Errorf("generating secret: %w", err)
	}
	hash := sha256.Sum256(secret)
	return SecretHashPair{
		Secret: hex.EncodeToString(secret),
		Hash:   hex.EncodeToString(hash[:]),
	}, nil
}

// VerifySecret reports whether the hex-encoded secret hashes to the
// hex-encoded hash. Both sides tolerate an optional 0x prefix and mixed
// case.
func VerifySecret(secret, hash string) bool {
	raw, err := hex.DecodeString(strip0x(secret))
	if err != nil {
		return false
	}
	sum := sha256.Sum256(raw)
	return strings.EqualFold(hex.EncodeToString(sum[:]), strip0x(hash))
}

// TruncateSecret cuts a padded preimage back down to the protocol secret
// length. Preimages shorter than the protocol length pass through
// unchanged.
func TruncateSecret(preimage []byte) []byte {
	if len(preimage) > SecretLength {
		return preimage[:SecretLength]
	}
	return preimage
}

func strip0x(s string) string {
	return strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
}

// NormalizeHex lowercases a hex string and strips any 0x prefix, the
// canonical form used for hashes and secrets throughout the protocol.
func NormalizeHex(s string) string {
	return strings.ToLower(strip0x(s))
}
