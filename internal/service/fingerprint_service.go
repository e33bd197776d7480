package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for account fingerprints. Fingerprints are computed
// on every Add, so memory is kept well below password-hashing settings.
const (
	fingerprintTime    = 1
	fingerprintMemory  = 19 * 1024 // 19MB
	fingerprintThreads = 1
	fingerprintKeyLen  = 32
)

// Argon2FingerprintService implements ports.FingerprintService. The hash is
// keyed by a server-side pepper so fingerprints cannot be reversed by
// enumerating account numbers without it.
type Argon2FingerprintService struct {
	salt []byte
}

// NewArgon2FingerprintService derives a fixed salt from pepper.
func NewArgon2FingerprintService(pepper string) *Argon2FingerprintService {
	sum := sha256.Sum256([]byte("payment-method-fingerprint:" + pepper))
	return &Argon2FingerprintService{salt: sum[:16]}
}

// Fingerprint returns a hex Argon2id digest of the normalized value.
// Case and whitespace differences map to the same fingerprint.
func (s *Argon2FingerprintService) Fingerprint(value string) string {
	key := argon2.IDKey([]byte(normalizeAccount(value)), s.salt,
		fingerprintTime, fingerprintMemory, fingerprintThreads, fingerprintKeyLen)
	return hex.EncodeToString(key)
}

func normalizeAccount(v string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return unicode.ToUpper(r)
	}, v)
}
