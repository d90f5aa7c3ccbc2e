// Package redisrepo keeps the revocation ledger in Redis. Each record is a
// hash keyed by jti, indexed by a per-user set and a sorted set of expiry
// times. Multi-key updates run as Lua scripts so they commit atomically.
//
// The scripts derive some key names from ARGV, so every key must live in one
// hash slot. The prefix is always wrapped as a hash tag ("{spar:ledger}") to
// keep a cluster deployment on a single slot.
package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/jrsteele09/go-spar-server/ledger"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "{spar:ledger}"

var _ ledger.Repo = (*LedgerRepo)(nil)

// KEYS[1] record hash, KEYS[2] user set, KEYS[3] expiry index, KEYS[4] id sequence
// ARGV jti, username, issued_at, expires_at (unix seconds)
var recordScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
local id = redis.call("INCR", KEYS[4])
redis.call("HSET", KEYS[1], "id", id, "jti", ARGV[1], "username", ARGV[2], "issued_at", ARGV[3], "expires_at", ARGV[4])
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[4], ARGV[1])
return id
`)

// KEYS[1] record hash, KEYS[2] expiry index
// ARGV user set prefix, jti
var revokeScript = redis.NewScript(`
local username = redis.call("HGET", KEYS[1], "username")
if not username then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. username, ARGV[2])
redis.call("ZREM", KEYS[2], ARGV[2])
return 1
`)

// KEYS[1] user set, KEYS[2] expiry index
// ARGV record hash prefix
var revokeAllScript = redis.NewScript(`
local jtis = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, jti in ipairs(jtis) do
  removed = removed + redis.call("DEL", ARGV[1] .. jti)
  redis.call("ZREM", KEYS[2], jti)
end
redis.call("DEL", KEYS[1])
return removed
`)

// KEYS[1] expiry index
// ARGV record hash prefix, now (unix seconds), user set prefix
var sweepScript = redis.NewScript(`
local jtis = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
local removed = 0
for _, jti in ipairs(jtis) do
  local key = ARGV[1] .. jti
  local username = redis.call("HGET", key, "username")
  if username then
    redis.call("SREM", ARGV[3] .. username, jti)
  end
  removed = removed + redis.call("DEL", key)
  redis.call("ZREM", KEYS[1], jti)
end
return removed
`)

type LedgerRepo struct {
	client  redis.UniversalClient
	prefix  string
	nowFunc func() time.Time
}

type Option func(*LedgerRepo)

// WithPrefix sets the key prefix. A prefix without a hash tag is wrapped in
// braces.
func WithPrefix(prefix string) Option {
	return func(r *LedgerRepo) {
		if prefix != "" {
			r.prefix = hashTag(prefix)
		}
	}
}

func hashTag(prefix string) string {
	open := strings.Index(prefix, "{")
	if open >= 0 && strings.Index(prefix[open:], "}") > 1 {
		return prefix
	}
	return "{" + prefix + "}"
}

func WithNowFunc(now func() time.Time) Option {
	return func(r *LedgerRepo) {
		r.nowFunc = now
	}
}

func NewLedgerRepo(client redis.UniversalClient, options ...Option) *LedgerRepo {
	r := &LedgerRepo{
		client:  client,
		prefix:  defaultPrefix,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *LedgerRepo) recordPrefix() string { return r.prefix + ":jti:" }
func (r *LedgerRepo) userPrefix() string   { return r.prefix + ":user:" }
func (r *LedgerRepo) expiryKey() string    { return r.prefix + ":expiry" }
func (r *LedgerRepo) sequenceKey() string  { return r.prefix + ":seq" }

func (r *LedgerRepo) Record(ctx context.Context, record *ledger.Record) error {
	id, err := recordScript.Run(ctx, r.client,
		[]string{
			r.recordPrefix() + record.JTI,
			r.userPrefix() + record.Username,
			r.expiryKey(),
			r.sequenceKey(),
		},
		record.JTI,
		record.Username,
		record.IssuedAt.Unix(),
		record.ExpiresAt.Unix(),
	).Int64()
	if err != nil {
		return autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "LedgerRepo.Record")
	}
	if id == 0 {
		return autherrors.Mark(autherrors.ErrConflict, nil, "LedgerRepo.Record jti "+record.JTI)
	}
	record.ID = uint(id)
	return nil
}

func (r *LedgerRepo) IsLive(ctx context.Context, jti string) (bool, error) {
	raw, err := r.client.HGet(ctx, r.recordPrefix()+jti, "expires_at").Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "LedgerRepo.IsLive")
	}
	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "LedgerRepo.IsLive corrupt expiry")
	}
	return r.nowFunc().Before(time.Unix(expiresAt, 0)), nil
}

func (r *LedgerRepo) Revoke(ctx context.Context, jti string) (int64, error) {
	n, err := revokeScript.Run(ctx, r.client,
		[]string{r.recordPrefix() + jti, r.expiryKey()},
		r.userPrefix(), jti,
	).Int64()
	if err != nil {
		return 0, autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "LedgerRepo.Revoke")
	}
	return n, nil
}

func (r *LedgerRepo) RevokeAll(ctx context.Context, username string) (int64, error) {
	n, err := revokeAllScript.Run(ctx, r.client,
		[]string{r.userPrefix() + username, r.expiryKey()},
		r.recordPrefix(),
	).Int64()
	if err != nil {
		return 0, autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "LedgerRepo.RevokeAll")
	}
	return n, nil
}

func (r *LedgerRepo) ListFor(ctx context.Context, username string) ([]*ledger.Record, error) {
	jtis, err := r.client.SMembers(ctx, r.userPrefix()+username).Result()
	if err != nil {
		return nil, autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "LedgerRepo.ListFor")
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(jtis))
	for _, jti := range jtis {
		cmds = append(cmds, pipe.HGetAll(ctx, r.recordPrefix()+jti))
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "LedgerRepo.ListFor")
		}
	}

	records := make([]*ledger.Record, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		record, err := decodeRecord(fields)
		if err != nil {
			return nil, autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "LedgerRepo.ListFor")
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID > records[j].ID
	})
	return records, nil
}

func (r *LedgerRepo) SweepExpired(ctx context.Context) (int64, error) {
	n, err := sweepScript.Run(ctx, r.client,
		[]string{r.expiryKey()},
		r.recordPrefix(), r.nowFunc().Unix(), r.userPrefix(),
	).Int64()
	if err != nil {
		return 0, autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "LedgerRepo.SweepExpired")
	}
	return n, nil
}

func decodeRecord(fields map[string]string) (*ledger.Record, error) {
	id, err := strconv.ParseUint(fields["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode id: %w", err)
	}
	issuedAt, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode issued_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode expires_at: %w", err)
	}
	return &ledger.Record{
		ID:        uint(id),
		JTI:       fields["jti"],
		Username:  fields["username"],
		IssuedAt:  time.Unix(issuedAt, 0).UTC(),
		ExpiresAt: time.Unix(expiresAt, 0).UTC(),
	}, nil
}
