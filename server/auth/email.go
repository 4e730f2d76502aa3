package auth

import (
	crand "crypto/rand"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/velotype/velotype/crypto/hash"
)

// EmailLookupHash returns the deterministic HMAC of a normalized email
// address. The store indexes accounts by this hash; the plaintext address
// never lands on disk.
func (s *Service) EmailLookupHash(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return hash.HmacSha256Hex(s.emailHashKey, []byte(normalized))
}

// EncryptEmail seals an address with AES-GCM for storage. The nonce is
// prepended to the ciphertext.
func (s *Service) EncryptEmail(email string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(crand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "could not generate nonce")
	}
	return s.aead.Seal(nonce, nonce, []byte(email), nil), nil
}

// DecryptEmail reverses EncryptEmail for the profile and export read paths.
func (s *Service) DecryptEmail(blob []byte) (string, error) {
	if len(blob) < s.aead.NonceSize() {
		return "", errors.New("email ciphertext too short")
	}
	nonce, ciphertext := blob[:s.aead.NonceSize()], blob[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(err, "could not decrypt email")
	}
	return string(plain), nil
}
