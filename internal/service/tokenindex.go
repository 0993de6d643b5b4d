package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/fitforge/wearable-sync-go/internal/redis"
	"github.com/fitforge/wearable-sync-go/internal/model"
	"github.com/fitforge/wearable-sync-go/internal/repository"
	"github.com/fitforge/wearable-sync-go/internal/util"
)

const tokenIndexTTL = 30 * 24 * time.Hour

// TokenResolver maps a provider's plaintext access tokens to connections.
// Satisfied by TokenIndex; consumers take the interface so tests can swap in
// a fake without redis.
type TokenResolver interface {
	Resolve(ctx context.Context, provider model.Provider, plainToken string) (*model.Connection, error)
	Put(ctx context.Context, plainToken, connectionID string)
	Remove(ctx context.Context, plainToken string)
}

var _ TokenResolver = (*TokenIndex)(nil)

// TokenIndex resolves a provider's opaque per-user access token to a local
// connection. A redis entry keyed by HMAC of the plaintext token makes
// webhook resolution O(1); a decrypt-and-compare scan over active
// connections covers index misses (cold cache, rows written before the
// index existed) and backfills the entry on a hit.
type TokenIndex struct {
	redis    *redisclient.Client
	connRepo repository.ConnectionRepository
	cipher   *util.TokenCipher
	secret   string
}

func NewTokenIndex(redis *redisclient.Client, connRepo repository.ConnectionRepository, cipher *util.TokenCipher, hmacSecret string) *TokenIndex {
	return &TokenIndex{redis: redis, connRepo: connRepo, cipher: cipher, secret: hmacSecret}
}

func (t *TokenIndex) key(plainToken string) string {
	return redisclient.TokenIndexKey(util.HmacSHA256(t.secret, plainToken))
}

// Put records plainToken → connectionID. Index failures are logged, never
// fatal: the scan fallback keeps resolution correct.
func (t *TokenIndex) Put(ctx context.Context, plainToken, connectionID string) {
	if err := t.redis.Set(ctx, t.key(plainToken), connectionID, tokenIndexTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("token index: put failed")
	}
}

func (t *TokenIndex) Remove(ctx context.Context, plainToken string) {
	if err := t.redis.Del(ctx, t.key(plainToken)).Err(); err != nil {
		log.Warn().Err(err).Msg("token index: remove failed")
	}
}

// Resolve returns the active connection owning plainToken, or nil when no
// active connection matches.
func (t *TokenIndex) Resolve(ctx context.Context, provider model.Provider, plainToken string) (*model.Connection, error) {
	if id, err := t.redis.Get(ctx, t.key(plainToken)).Result(); err == nil && id != "" {
		conn, err := t.connRepo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if conn != nil && conn.IsActive && t.matches(conn, plainToken) {
			return conn, nil
		}
		// Stale entry: fall through to the scan.
		t.redis.Del(ctx, t.key(plainToken))
	}

	conns, err := t.connRepo.FindActiveByProvider(ctx, provider)
	if err != nil {
		return nil, err
	}
	for i := range conns {
		if t.matches(&conns[i], plainToken) {
			t.Put(ctx, plainToken, conns[i].ID)
			return &conns[i], nil
		}
	}
	return nil, nil
}

func (t *TokenIndex) matches(conn *model.Connection, plainToken string) bool {
	if conn.AccessToken == nil {
		return false
	}
	stored, err := t.cipher.Decrypt(*conn.AccessToken)
	if err != nil {
		log.Warn().Err(err).Str("connectionId", conn.ID).Msg("token index: decrypt failed")
		return false
	}
	return util.ConstantTimeEqual(stored, plainToken)
}
