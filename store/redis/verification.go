package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccount/model"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "acct:vt:"
	maxRetries    = 4
	scanBatch     = 200
)

var errTooMuchContention = errors.New("redis: too much contention")

// VerificationTokens implements goAccount.VerificationTokenStore on Redis.
// Expired records disappear through their key TTL; DeleteExpired only sweeps
// the account index sets.
type VerificationTokens struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewVerificationTokens builds the store. An empty prefix selects "acct:vt:";
// a nil now selects time.Now.
func NewVerificationTokens(client redis.UniversalClient, prefix string, now func() time.Time) *VerificationTokens {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if now == nil {
		now = time.Now
	}
	return &VerificationTokens{redis: client, prefix: prefix, now: now}
}

func (s *VerificationTokens) tokenKey(hash string) string {
	return s.prefix + "t:" + hash
}

func (s *VerificationTokens) accountKey(accountID string) string {
	return s.prefix + "a:" + accountID
}

func (s *VerificationTokens) ttl(t *model.VerificationToken) time.Duration {
	ttl := t.ExpiresAt.Sub(s.now())
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	return ttl
}

func (s *VerificationTokens) Save(ctx context.Context, token *model.VerificationToken) error {
	encoded, err := encodeToken(token)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(token.Token), encoded, s.ttl(token))
		pipe.SAdd(ctx, s.accountKey(token.AccountID), token.Token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save verification token: %w", err)
	}
	return nil
}

func (s *VerificationTokens) Find(ctx context.Context, tokenHash string) (*model.VerificationToken, error) {
	data, err := s.redis.Get(ctx, s.tokenKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return decodeToken(tokenHash, data)
}

// update runs fn against the current record under WATCH. fn returns the
// record to write back, or nil to delete it.
func (s *VerificationTokens) update(
	ctx context.Context,
	tokenHash string,
	fn func(t *model.VerificationToken) (*model.VerificationToken, error),
) error {
	key := s.tokenKey(tokenHash)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			current, err := decodeToken(tokenHash, data)
			if err != nil {
				return err
			}

			next, err := fn(current)
			if err != nil {
				return err
			}

			if next == nil {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					pipe.SRem(ctx, s.accountKey(current.AccountID), tokenHash)
					return nil
				})
				return err
			}

			encoded, err := encodeToken(next)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, s.ttl(next))
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return model.ErrNotFound
		}
		return err
	}
	return errTooMuchContention
}

func (s *VerificationTokens) Consume(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	consumed := false
	err := s.update(ctx, tokenHash, func(t *model.VerificationToken) (*model.VerificationToken, error) {
		if t.Used {
			consumed = false
			return t, nil
		}
		t.Consume(at)
		consumed = true
		return t, nil
	})
	if err != nil {
		return false, err
	}
	return consumed, nil
}

func (s *VerificationTokens) RecordFailure(ctx context.Context, tokenHash string, maxAttempts int) (int, error) {
	attempts := 0
	err := s.update(ctx, tokenHash, func(t *model.VerificationToken) (*model.VerificationToken, error) {
		t.Attempts++
		attempts = t.Attempts
		if maxAttempts > 0 && t.Attempts >= maxAttempts {
			return nil, nil
		}
		return t, nil
	})
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

func (s *VerificationTokens) DeleteByAccount(ctx context.Context, accountID string, typ model.TokenType) error {
	idx := s.accountKey(accountID)
	hashes, err := s.redis.SMembers(ctx, idx).Result()
	if err != nil {
		return err
	}

	var drop []string
	for _, hash := range hashes {
		if typ == "" {
			drop = append(drop, hash)
			continue
		}
		t, err := s.Find(ctx, hash)
		if errors.Is(err, model.ErrNotFound) {
			drop = append(drop, hash)
			continue
		}
		if err != nil {
			return err
		}
		if t.Type == typ {
			drop = append(drop, hash)
		}
	}
	if len(drop) == 0 {
		return nil
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		members := make([]any, 0, len(drop))
		for _, hash := range drop {
			pipe.Del(ctx, s.tokenKey(hash))
			members = append(members, hash)
		}
		pipe.SRem(ctx, idx, members...)
		return nil
	})
	return err
}

// DeleteExpired removes index entries whose token key has already expired.
// The token records themselves are reclaimed by Redis. The count reports
// pruned index entries.
func (s *VerificationTokens) DeleteExpired(ctx context.Context, _ time.Time) (int, error) {
	removed := 0
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+"a:*", scanBatch).Result()
		if err != nil {
			return removed, err
		}
		for _, idx := range keys {
			n, err := s.pruneIndex(ctx, idx)
			if err != nil {
				return removed, err
			}
			removed += n
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (s *VerificationTokens) pruneIndex(ctx context.Context, idx string) (int, error) {
	hashes, err := s.redis.SMembers(ctx, idx).Result()
	if err != nil {
		return 0, err
	}
	var stale []any
	for _, hash := range hashes {
		exists, err := s.redis.Exists(ctx, s.tokenKey(hash)).Result()
		if err != nil {
			return 0, err
		}
		if exists == 0 {
			stale = append(stale, hash)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := s.redis.SRem(ctx, idx, stale...).Err(); err != nil {
		return 0, err
	}
	return len(stale), nil
}
