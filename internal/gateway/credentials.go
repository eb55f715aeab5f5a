package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// AccessTokenSetting is the settings key the back office stores the gateway
// access token under.
const AccessTokenSetting = "mp_access_token"

// CredentialSource resolves the gateway access token.
type CredentialSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticCredentials always returns the same token.
type StaticCredentials string

func (s StaticCredentials) AccessToken(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoCredentials
	}
	return string(s), nil
}

// SettingLookup reads one back-office setting.
type SettingLookup interface {
	Setting(ctx context.Context, key string) (string, bool, error)
}

// SettingsCredentials reads the token from the settings table and falls back
// to a process-level token when the setting is empty or unreadable.
type SettingsCredentials struct {
	settings SettingLookup
	fallback string
}

func NewSettingsCredentials(settings SettingLookup, fallback string) *SettingsCredentials {
	return &SettingsCredentials{settings: settings, fallback: fallback}
}

func (s *SettingsCredentials) AccessToken(ctx context.Context) (string, error) {
	value, ok, err := s.settings.Setting(ctx, AccessTokenSetting)
	if err != nil {
		if s.fallback != "" {
			return s.fallback, nil
		}
		return "", errors.Wrap(err, "read access token setting")
	}
	if ok {
		return value, nil
	}
	if s.fallback != "" {
		return s.fallback, nil
	}
	return "", ErrNoCredentials
}

// DefaultRefreshTimeout bounds one shared credential refresh.
const DefaultRefreshTimeout = 10 * time.Second

// CachedCredentials memoizes a CredentialSource for a fixed TTL. Concurrent
// refreshes collapse into one call to the source, which is detached from the
// cancellation of whichever caller started it.
type CachedCredentials struct {
	source         CredentialSource
	ttl            time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	group          singleflight.Group

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
	valid     bool
}

type CacheOption func(*CachedCredentials)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *CachedCredentials) { c.now = now }
}

// WithRefreshTimeout overrides DefaultRefreshTimeout.
func WithRefreshTimeout(d time.Duration) CacheOption {
	return func(c *CachedCredentials) { c.refreshTimeout = d }
}

func NewCachedCredentials(source CredentialSource, ttl time.Duration, opts ...CacheOption) *CachedCredentials {
	c := &CachedCredentials{source: source, ttl: ttl, refreshTimeout: DefaultRefreshTimeout, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedCredentials) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.valid && c.now().Sub(c.fetchedAt) < c.ttl {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("token", func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		token, err := c.source.AccessToken(refreshCtx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = token
		c.fetchedAt = c.now()
		c.valid = true
		c.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next call refetches it.
func (c *CachedCredentials) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.token = ""
	c.mu.Unlock()
}
