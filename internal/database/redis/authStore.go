package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

const (
	staffSessionPrefix = "session:"
	challengePrefix    = "challenge:"
	reauthPrefix       = "reauth:"

	// Expired grants stay around as markers for a while so the gate can
	// answer ReauthExpired instead of ReauthRequired. The sweeper trims
	// the leftovers.
	reauthMarkerTTL = time.Hour
)

// AuthStore keeps the step-up state in Redis: single-use challenges and
// multi-use freshness grants. Staff sessions are written by the external
// auth system; this store only reads them.
type AuthStore struct {
	client *redis.Client
}

func NewAuthStore(client *redis.Client) *AuthStore {
	return &AuthStore{client: client}
}

func (s *AuthStore) StaffSession(ctx context.Context, token string) (*entity.StaffSession, error) {
	raw, err := s.client.Get(ctx, staffSessionPrefix+token).Result()
	if err == redis.Nil {
		return nil, entity.ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read staff session: %w", err)
	}

	var sess entity.StaffSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode staff session: %w", err)
	}
	sess.Token = token
	return &sess, nil
}

func (s *AuthStore) PutChallenge(ctx context.Context, id, owner string, ttl time.Duration) error {
	if err := s.client.Set(ctx, challengePrefix+id, owner, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// TakeChallenge consumes a challenge: it is deleted on first successful
// read, so a replayed challenge id always fails.
func (s *AuthStore) TakeChallenge(ctx context.Context, id string) (string, error) {
	owner, err := s.client.GetDel(ctx, challengePrefix+id).Result()
	if err == redis.Nil {
		return "", entity.ErrChallengeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume challenge: %w", err)
	}
	return owner, nil
}

func (s *AuthStore) GrantReauth(ctx context.Context, token string, until time.Time) error {
	value := until.UTC().Format(time.RFC3339Nano)
	if err := s.client.Set(ctx, reauthPrefix+token, value, reauthMarkerTTL).Err(); err != nil {
		return fmt.Errorf("failed to store reauth grant: %w", err)
	}
	return nil
}

// ReauthDeadline returns the freshness deadline for the session, with
// found=false when no grant was ever recorded (or the marker aged out).
func (s *AuthStore) ReauthDeadline(ctx context.Context, token string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, reauthPrefix+token).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read reauth grant: %w", err)
	}

	until, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse reauth grant: %w", err)
	}
	return until, true, nil
}

// SweepExpiredGrants deletes reauth markers whose deadline lapsed more than
// grace ago. Returns the number of deleted markers.
func (s *AuthStore) SweepExpiredGrants(ctx context.Context, grace time.Duration) (int, error) {
	var swept int
	var cursor uint64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, reauthPrefix+"*", 100).Result()
		if err != nil {
			return swept, fmt.Errorf("failed to scan reauth grants: %w", err)
		}

		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return swept, fmt.Errorf("failed to read reauth grant: %w", err)
			}

			until, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil || time.Since(until) > grace {
				if err := s.client.Del(ctx, key).Err(); err != nil {
					return swept, fmt.Errorf("failed to delete reauth grant: %w", err)
				}
				swept++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return swept, nil
}
