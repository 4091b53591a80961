package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	tokenKeyPrefix   = "showcase:idtoken:" // verified identity per token hash
	userTokensPrefix = "showcase:uidtokens:"
)

// CachedProvider memoizes token verification in Redis so each request does
// not pay for a signature check.
type CachedProvider struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
}

func NewCachedProvider(next Provider, client *redis.Client, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedProvider{next: next, client: client, ttl: ttl}
}

func (p *CachedProvider) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	return p.next.SignUp(ctx, email, password)
}

func (p *CachedProvider) VerifyToken(ctx context.Context, idToken string) (*Identity, error) {
	key := tokenKeyPrefix + hashToken(idToken)

	data, err := p.client.Get(ctx, key).Bytes()
	if err == nil {
		var id Identity
		if jerr := json.Unmarshal(data, &id); jerr == nil {
			return &id, nil
		}
	} else if err != redis.Nil {
		log.Warn().Err(err).Msg("identity cache read failed")
	}

	id, err := p.next.VerifyToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("marshal identity: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Set(ctx, key, payload, p.ttl)
	pipe.SAdd(ctx, userTokensPrefix+id.UID, key)
	pipe.Expire(ctx, userTokensPrefix+id.UID, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("uid", id.UID).Msg("identity cache write failed")
	}

	return id, nil
}

// SignOut revokes upstream first, then forgets every cached token of uid.
func (p *CachedProvider) SignOut(ctx context.Context, uid string) error {
	if err := p.next.SignOut(ctx, uid); err != nil {
		return err
	}

	setKey := userTokensPrefix + uid
	keys, err := p.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("list cached tokens: %w", err)
	}

	pipe := p.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
	}
	pipe.Del(ctx, setKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear cached tokens: %w", err)
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
