// Package auth implements the revocable session verifier: HMAC-signed tokens,
// a file-backed revocation set, password hashing and email PII protection.
package auth

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/velotype/velotype/async"
	"github.com/velotype/velotype/crypto/hash"
)

var log = logrus.WithField("prefix", "auth")

// revocationPruneInterval bounds how stale the on-disk snapshot can get when
// no logouts happen; every mutation also prunes in place.
const revocationPruneInterval = time.Hour

// Config options for the auth service.
type Config struct {
	// TokenSecret signs and verifies session tokens. Required.
	TokenSecret []byte
	// EmailHashKey keys the deterministic email lookup hash. Falls back to
	// TokenSecret when empty.
	EmailHashKey []byte
	// PIIKey encrypts email addresses at rest. Falls back to TokenSecret
	// when empty.
	PIIKey []byte
	// RevocationPath is the JSON snapshot file for revoked tokens. Empty
	// keeps the revocation set in memory only.
	RevocationPath string
	// GoogleClientID is the optional OAuth audience accepted alongside
	// first-party tokens. Identity verification itself is external.
	GoogleClientID string
}

// Service issues, verifies and revokes session tokens.
type Service struct {
	ctx          context.Context
	cancel       context.CancelFunc
	cfg          *Config
	revoked      *revocationStore
	emailHashKey []byte
	aead         cipher.AEAD
}

// NewService instantiates the auth service from its config.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	if len(cfg.TokenSecret) == 0 {
		return nil, errors.New("auth: token secret is required")
	}
	emailKey := cfg.EmailHashKey
	if len(emailKey) == 0 {
		emailKey = cfg.TokenSecret
	}
	piiKey := cfg.PIIKey
	if len(piiKey) == 0 {
		piiKey = cfg.TokenSecret
	}
	// The PII key may be any length; derive a fixed AES-256 key from it.
	derived := hash.Hash(piiKey)
	block, err := aes.NewCipher(derived[:])
	if err != nil {
		return nil, errors.Wrap(err, "could not build PII cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "could not build PII cipher")
	}
	revoked, err := newRevocationStore(cfg.RevocationPath)
	if err != nil {
		return nil, errors.Wrap(err, "could not load revocation snapshot")
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:          ctx,
		cancel:       cancel,
		cfg:          cfg,
		revoked:      revoked,
		emailHashKey: emailKey,
		aead:         aead,
	}, nil
}

// Start the background revocation pruning loop.
func (s *Service) Start() {
	async.RunEvery(s.ctx, revocationPruneInterval, func() {
		if err := s.revoked.prune(); err != nil {
			log.WithError(err).Error("Could not prune revocation snapshot")
		}
	})
}

// Stop the service and flush the revocation snapshot.
func (s *Service) Stop() error {
	s.cancel()
	return s.revoked.prune()
}

// Status always returns nil.
func (s *Service) Status() error {
	return nil
}

// GoogleClientID exposes the configured OAuth audience hook.
func (s *Service) GoogleClientID() string {
	return s.cfg.GoogleClientID
}
