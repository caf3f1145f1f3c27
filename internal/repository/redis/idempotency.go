package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemLockValue    = "LOCK"
	idemResultPrefix = "RES:"
)

type IdemState int

const (
	// IdemAcquired means the caller owns the key and must SaveResult or Release.
	IdemAcquired IdemState = iota
	// IdemReplay means a result is stored and returned to the caller.
	IdemReplay
	// IdemInProgress means another request holds the key.
	IdemInProgress
)

// IdemResult is a finished response stored under a key. A zero Status comes
// from a value written before statuses were stored.
type IdemResult struct {
	Status int
	Body   string
}

// IdempotencyStore remembers the response of a completed request under
// a client-supplied key so a retried request gets the same answer.
type IdempotencyStore struct {
	rdb     *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl, lockTTL: 60 * time.Second}
}

// Begin either replays a stored result, reports that the key is busy, or
// takes the lock for the caller.
func (s *IdempotencyStore) Begin(ctx context.Context, key string) (IdemState, IdemResult, error) {
	if res, ok, err := s.getResult(ctx, key); err != nil {
		return 0, IdemResult{}, err
	} else if ok {
		return IdemReplay, res, nil
	}

	locked, err := s.rdb.SetNX(ctx, key, idemLockValue, s.lockTTL).Result()
	if err != nil {
		return 0, IdemResult{}, err
	}
	if locked {
		return IdemAcquired, IdemResult{}, nil
	}

	// lost the race; the winner may have finished in between
	if res, ok, err := s.getResult(ctx, key); err != nil {
		return 0, IdemResult{}, err
	} else if ok {
		return IdemReplay, res, nil
	}

	return IdemInProgress, IdemResult{}, nil
}

// SaveResult replaces the lock with the final response. Error responses may
// be saved too when a retry must not run the request again.
func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, status int, jsonBody string) error {
	v := idemResultPrefix + strconv.Itoa(status) + ":" + jsonBody
	return s.rdb.Set(ctx, key, v, s.ttl).Err()
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *IdempotencyStore) getResult(ctx context.Context, key string) (IdemResult, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return IdemResult{}, false, nil
	}
	if err != nil {
		return IdemResult{}, false, err
	}

	rest, ok := strings.CutPrefix(v, idemResultPrefix)
	if !ok {
		return IdemResult{}, false, nil
	}

	return parseIdemResult(rest), true, nil
}

func parseIdemResult(v string) IdemResult {
	code, body, ok := strings.Cut(v, ":")
	if !ok {
		return IdemResult{Body: v}
	}

	status, err := strconv.Atoi(code)
	if err != nil {
		return IdemResult{Body: v}
	}

	return IdemResult{Status: status, Body: body}
}
