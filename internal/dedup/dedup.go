// Package dedup suppresses provider redeliveries of the same email by
// claiming a content hash in Redis.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmehdipour/mail-relay/internal/model"
)

type Config struct {
	KeyPrefix   string        // default "relay:dedup:"
	TTL         time.Duration // how long a delivered email is remembered, default 24h
	InFlightTTL time.Duration // how long a claim survives a crashed worker, default 5m
}

// State is the outcome of a Claim.
type State int

const (
	// Claimed means the caller owns the email and must Complete or Release it.
	Claimed State = iota
	// InFlight means another request is still processing the same email.
	InFlight
	// Done means the same email was already delivered.
	Done
)

func (s State) String() string {
	switch s {
	case Claimed:
		return "claimed"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

const (
	valueProcessing = "processing"
	valueDone       = "done"
)

type Store struct {
	rdb         redis.Cmdable
	prefix      string
	ttl         time.Duration
	inFlightTTL time.Duration
}

// New returns a Store. A nil client gives a Store that claims everything.
func New(rdb redis.Cmdable, cfg Config) *Store {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "relay:dedup:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.InFlightTTL <= 0 {
		cfg.InFlightTTL = 5 * time.Minute
	}
	return &Store{rdb: rdb, prefix: cfg.KeyPrefix, ttl: cfg.TTL, inFlightTTL: cfg.InFlightTTL}
}

func (s *Store) Enabled() bool { return s != nil && s.rdb != nil }

// Key hashes the fields a redelivery repeats verbatim.
func Key(env model.Envelope) string {
	h := sha256.New()
	for _, part := range []string{env.From, env.To, env.Subject, env.Body} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Claim takes env for processing. A claim lasts InFlightTTL until Complete
// extends it to TTL.
func (s *Store) Claim(ctx context.Context, env model.Envelope) (string, State, error) {
	key := Key(env)
	if !s.Enabled() {
		return key, Claimed, nil
	}
	ok, err := s.rdb.SetNX(ctx, s.prefix+key, valueProcessing, s.inFlightTTL).Result()
	if err != nil {
		return key, InFlight, err
	}
	if ok {
		return key, Claimed, nil
	}

	val, err := s.rdb.Get(ctx, s.prefix+key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// released between SETNX and GET; the sender retries
		return key, InFlight, nil
	case err != nil:
		return key, InFlight, err
	case val == valueDone:
		return key, Done, nil
	default:
		return key, InFlight, nil
	}
}

// Complete marks a claimed email as delivered for TTL.
func (s *Store) Complete(ctx context.Context, key string) error {
	if !s.Enabled() {
		return nil
	}
	return s.rdb.Set(ctx, s.prefix+key, valueDone, s.ttl).Err()
}

// Release forgets a claim so a failed email can be redelivered.
func (s *Store) Release(ctx context.Context, key string) error {
	if !s.Enabled() {
		return nil
	}
	return s.rdb.Del(ctx, s.prefix+key).Err()
}
