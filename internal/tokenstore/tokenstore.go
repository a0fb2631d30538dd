// Package tokenstore manages auth tokens for the credential identities used
// against the streaming platform. Tokens are refreshed proactively before
// expiry and cached in a shared store so concurrent workers observe one
// refreshed token per identity instead of each triggering their own refresh.
package tokenstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/soundscout/soundscout-go/internal/conf"
	"github.com/soundscout/soundscout-go/internal/errors"
	"github.com/soundscout/soundscout-go/internal/logging"
)

// Token is an auth token with its absolute expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// RefreshFunc exchanges an identity's long-lived credentials for a fresh
// short-lived token.
type RefreshFunc func(ctx context.Context, identity conf.Identity) (Token, error)

// Store hands out valid tokens per identity, refreshing before expiry.
// Safe for concurrent callers; the refresh itself is serialized per store so
// a burst of workers hitting an expiring token produces one refresh.
type Store struct {
	mu         sync.Mutex
	cache      *cache.Cache
	identities map[string]conf.Identity
	refresh    RefreshFunc
	threshold  time.Duration
	logger     *slog.Logger
}

// New builds a store over the configured identities.
func New(settings *conf.StreamingSettings, refresh RefreshFunc) *Store {
	identities := make(map[string]conf.Identity, len(settings.Identities))
	for _, id := range settings.Identities {
		identities[id.Name] = id
	}
	return &Store{
		cache:      cache.New(cache.NoExpiration, 10*time.Minute),
		identities: identities,
		refresh:    refresh,
		threshold:  time.Duration(settings.TokenRefreshThreshold) * time.Second,
		logger:     logging.ForService("tokenstore"),
	}
}

// Token returns a valid token for the identity, refreshing it when within
// the configured threshold of expiry.
func (s *Store) Token(ctx context.Context, identityName string) (string, error) {
	identity, ok := s.identities[identityName]
	if !ok {
		// Unknown identity is a configuration error, not a transient one.
		return "", errors.Newf("unknown credential identity %q", identityName).
			Component("tokenstore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, found := s.cache.Get(identityName); found {
		tok := cached.(Token)
		if time.Now().Before(tok.ExpiresAt.Add(-s.threshold)) {
			return tok.Value, nil
		}
	}

	tok, err := s.refresh(ctx, identity)
	if err != nil {
		// One immediate retry; session endpoints are flaky under load.
		s.logger.Warn("token refresh failed, retrying once",
			"identity", identityName, "error", err)
		tok, err = s.refresh(ctx, identity)
		if err != nil {
			return "", errors.New(err).
				Component("tokenstore").
				Category(errors.CategoryToken).
				Context("identity", identityName).
				Build()
		}
	}

	s.cache.Set(identityName, tok, cache.NoExpiration)
	s.logger.Debug("token refreshed", "identity", identityName,
		"expires_at", tok.ExpiresAt)
	return tok.Value, nil
}
