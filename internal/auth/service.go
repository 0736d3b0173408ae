package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/pestward/pestward/internal/shared"
)

const keyPrefixTag = "pw"

// KeyStore is the persistence surface the service depends on.
type KeyStore interface {
	FindByPrefix(ctx context.Context, prefix string) (*keyRecord, error)
	Insert(ctx context.Context, companyID int64, label, prefix string, hash []byte) (int64, time.Time, error)
	Revoke(ctx context.Context, companyID, keyID int64) (string, error)
	CompanyExists(ctx context.Context, companyID int64) (bool, error)
}

// Service verifies API keys and issues new ones.
type Service struct {
	store    KeyStore
	redis    *redis.Client
	cacheTTL time.Duration
}

// NewService constructs the auth service. The redis client is optional; without
// it every request pays the bcrypt comparison.
func NewService(store KeyStore, redisClient *redis.Client, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{store: store, redis: redisClient, cacheTTL: cacheTTL}
}

// Issue creates a new API key for the company and returns the plaintext secret
// exactly once.
func (s *Service) Issue(ctx context.Context, companyID int64, label string) (*IssuedKey, error) {
	if companyID <= 0 {
		return nil, fmt.Errorf("auth: company id required")
	}
	exists, err := s.store.CompanyExists(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("auth: check company: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("auth: company %d: %w", companyID, shared.ErrNotFound)
	}
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	secret := uuid.NewString() + uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash key: %w", err)
	}
	id, createdAt, err := s.store.Insert(ctx, companyID, label, prefix, hash)
	if err != nil {
		return nil, fmt.Errorf("auth: insert key: %w", err)
	}
	return &IssuedKey{
		APIKey: APIKey{ID: id, CompanyID: companyID, Label: label, Prefix: prefix, IsActive: true, CreatedAt: createdAt},
		Secret: fmt.Sprintf("%s_%s_%s", keyPrefixTag, prefix, secret),
	}, nil
}

// Revoke disables an existing key and drops any cached principal for it, so
// revocation takes effect on the next request rather than after the cache TTL.
func (s *Service) Revoke(ctx context.Context, companyID, keyID int64) error {
	prefix, err := s.store.Revoke(ctx, companyID, keyID)
	if err != nil {
		return err
	}
	if s.redis != nil {
		_ = s.redis.Del(ctx, cacheKey(prefix)).Err()
	}
	return nil
}

// Verify resolves a presented key into a principal.
func (s *Service) Verify(ctx context.Context, presented string) (*shared.Principal, error) {
	prefix, secret, err := splitKey(presented)
	if err != nil {
		return nil, err
	}

	if p, ok := s.cachedPrincipal(ctx, prefix, presented); ok {
		return p, nil
	}

	rec, err := s.store.FindByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("auth: lookup key: %w", err)
	}
	if !rec.IsActive {
		return nil, shared.ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword(rec.Hash, []byte(secret)); err != nil {
		return nil, shared.ErrInvalidAPIKey
	}

	principal := &shared.Principal{KeyID: rec.ID, CompanyID: rec.CompanyID, Label: rec.Label}
	s.cachePrincipal(ctx, prefix, presented, principal)
	return principal, nil
}

func splitKey(presented string) (prefix, secret string, err error) {
	parts := strings.SplitN(presented, "_", 3)
	if len(parts) != 3 || parts[0] != keyPrefixTag || parts[1] == "" || parts[2] == "" {
		return "", "", shared.ErrInvalidAPIKey
	}
	return parts[1], parts[2], nil
}

// The cache is keyed by the public prefix so Revoke can delete the entry
// without knowing the secret. The digest of the full presented key is stored
// alongside the principal, so a cache hit still requires the right secret.
func cacheKey(prefix string) string {
	return "auth:key:" + prefix
}

func presentedDigest(presented string) string {
	sum := sha256.Sum256([]byte(presented))
	return hex.EncodeToString(sum[:])
}

type cachedEntry struct {
	Digest    string           `json:"digest"`
	Principal shared.Principal `json:"principal"`
}

func (s *Service) cachedPrincipal(ctx context.Context, prefix, presented string) (*shared.Principal, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, cacheKey(prefix)).Bytes()
	if err != nil {
		return nil, false
	}
	var entry cachedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	if entry.Digest != presentedDigest(presented) {
		return nil, false
	}
	return &entry.Principal, true
}

func (s *Service) cachePrincipal(ctx context.Context, prefix, presented string, p *shared.Principal) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(cachedEntry{Digest: presentedDigest(presented), Principal: *p})
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, cacheKey(prefix), raw, s.cacheTTL).Err()
}
