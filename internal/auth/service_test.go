package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pestward/pestward/internal/shared"
	_ "github.com/pestward/pestward/testing"
)

type stubKeyStore struct {
	records map[string]*keyRecord
	nextID  int64
	lookups int
}

func newStubKeyStore() *stubKeyStore {
	return &stubKeyStore{records: make(map[string]*keyRecord), nextID: 1}
}

func (s *stubKeyStore) FindByPrefix(_ context.Context, prefix string) (*keyRecord, error) {
	s.lookups++
	rec, ok := s.records[prefix]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return rec, nil
}

func (s *stubKeyStore) Insert(_ context.Context, companyID int64, label, prefix string, hash []byte) (int64, time.Time, error) {
	id := s.nextID
	s.nextID++
	s.records[prefix] = &keyRecord{ID: id, CompanyID: companyID, Label: label, Prefix: prefix, Hash: hash, IsActive: true}
	return id, time.Now(), nil
}

func (s *stubKeyStore) Revoke(_ context.Context, companyID, keyID int64) (string, error) {
	for _, rec := range s.records {
		if rec.ID == keyID && rec.CompanyID == companyID {
			rec.IsActive = false
			return rec.Prefix, nil
		}
	}
	return "", shared.ErrNotFound
}

func (s *stubKeyStore) CompanyExists(_ context.Context, companyID int64) (bool, error) {
	return companyID != 404, nil
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	store := newStubKeyStore()
	svc := NewService(store, nil, time.Minute)

	issued, err := svc.Issue(context.Background(), 7, "dispatch app")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Secret)

	principal, err := svc.Verify(context.Background(), issued.Secret)
	require.NoError(t, err)
	assert.Equal(t, int64(7), principal.CompanyID)
	assert.Equal(t, issued.ID, principal.KeyID)
	assert.Equal(t, "dispatch app", principal.Label)
}

func TestVerifyRejectsBadSecrets(t *testing.T) {
	store := newStubKeyStore()
	svc := NewService(store, nil, time.Minute)

	issued, err := svc.Issue(context.Background(), 7, "ops")
	require.NoError(t, err)

	cases := []string{
		"",
		"not-a-key",
		"pw__",
		fmt.Sprintf("pw_%s_wrong-secret", issued.Prefix),
		"pw_unknownprefix_secret",
	}
	for _, presented := range cases {
		_, err := svc.Verify(context.Background(), presented)
		assert.ErrorIs(t, err, shared.ErrInvalidAPIKey, "presented=%q", presented)
	}
}

func TestVerifyRejectsRevokedKey(t *testing.T) {
	store := newStubKeyStore()
	svc := NewService(store, nil, time.Minute)

	issued, err := svc.Issue(context.Background(), 3, "old client")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), 3, issued.ID))

	_, err = svc.Verify(context.Background(), issued.Secret)
	assert.ErrorIs(t, err, shared.ErrInvalidAPIKey)
}

func TestIssueRejectsUnknownCompany(t *testing.T) {
	svc := NewService(newStubKeyStore(), nil, time.Minute)

	_, err := svc.Issue(context.Background(), 404, "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestVerifyUsesRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newStubKeyStore()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	store.records["abc"] = &keyRecord{ID: 1, CompanyID: 9, Label: "cached", Hash: hash, IsActive: true, Prefix: "abc"}

	svc := NewService(store, client, time.Minute)

	_, err = svc.Verify(context.Background(), "pw_abc_secret")
	require.NoError(t, err)
	require.Equal(t, 1, store.lookups)

	principal, err := svc.Verify(context.Background(), "pw_abc_secret")
	require.NoError(t, err)
	assert.Equal(t, 1, store.lookups, "second verify should hit the cache")
	assert.Equal(t, int64(9), principal.CompanyID)
}

func TestVerifyCacheRequiresMatchingSecret(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newStubKeyStore()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	store.records["abc"] = &keyRecord{ID: 1, CompanyID: 9, Label: "cached", Hash: hash, IsActive: true, Prefix: "abc"}

	svc := NewService(store, client, time.Minute)

	_, err = svc.Verify(context.Background(), "pw_abc_secret")
	require.NoError(t, err)

	// Same prefix, wrong secret: the cached entry must not authenticate it.
	_, err = svc.Verify(context.Background(), "pw_abc_forged")
	assert.ErrorIs(t, err, shared.ErrInvalidAPIKey)
	assert.Equal(t, 2, store.lookups, "digest mismatch falls through to the store")
}

func TestRevokeDropsCachedPrincipal(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newStubKeyStore()
	svc := NewService(store, client, time.Minute)

	issued, err := svc.Issue(context.Background(), 3, "field tablet")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), issued.Secret)
	require.NoError(t, err)
	require.Equal(t, 1, store.lookups)

	require.NoError(t, svc.Revoke(context.Background(), 3, issued.ID))

	_, err = svc.Verify(context.Background(), issued.Secret)
	assert.ErrorIs(t, err, shared.ErrInvalidAPIKey, "revoked key must not authenticate")
	assert.Equal(t, 2, store.lookups, "revocation clears the cached principal")
}
