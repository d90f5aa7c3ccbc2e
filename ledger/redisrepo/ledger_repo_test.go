package redisrepo_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/jrsteele09/go-spar-server/ledger"
	"github.com/jrsteele09/go-spar-server/ledger/redisrepo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	server *miniredis.Miniredis
	client *redis.Client
	repo   *redisrepo.LedgerRepo
	now    time.Time
	mu     sync.Mutex
}

func (f *testFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *testFixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &testFixture{
		server: server,
		client: client,
		now:    time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
	}
	f.repo = redisrepo.NewLedgerRepo(client, redisrepo.WithPrefix("test:ledger"), redisrepo.WithNowFunc(f.clock))
	return f
}

func (f *testFixture) record(t *testing.T, jti, username string, ttl time.Duration) *ledger.Record {
	t.Helper()
	now := f.clock()
	rec := &ledger.Record{
		JTI:       jti,
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	require.NoError(t, f.repo.Record(context.Background(), rec))
	return rec
}

func TestRecord_AndIsLive(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first := f.record(t, "jti-1", "alice", time.Hour)
	second := f.record(t, "jti-2", "alice", time.Hour)
	require.NotZero(t, first.ID)
	require.Greater(t, second.ID, first.ID)

	live, err := f.repo.IsLive(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, live)

	live, err = f.repo.IsLive(ctx, "missing")
	require.NoError(t, err)
	require.False(t, live)

	require.True(t, f.server.Exists("{test:ledger}:jti:jti-1"))
	members, err := f.server.SMembers("{test:ledger}:user:alice")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"jti-1", "jti-2"}, members)
}

func TestRecord_DuplicateJTIConflicts(t *testing.T) {
	f := setupTestFixture(t)

	f.record(t, "jti-1", "alice", time.Hour)
	err := f.repo.Record(context.Background(), &ledger.Record{
		JTI:       "jti-1",
		Username:  "bob",
		IssuedAt:  f.clock(),
		ExpiresAt: f.clock().Add(time.Hour),
	})
	require.ErrorIs(t, err, autherrors.ErrConflict)

	records, err := f.repo.ListFor(context.Background(), "bob")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestIsLive_ExpiryBoundary(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.record(t, "jti-1", "alice", time.Hour)

	f.advance(time.Hour - time.Second)
	live, err := f.repo.IsLive(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, live)

	f.advance(time.Second)
	live, err = f.repo.IsLive(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, live)
}

func TestRevoke_RemovesEveryIndex(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.record(t, "jti-1", "alice", time.Hour)

	n, err := f.repo.Revoke(ctx, "jti-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = f.repo.Revoke(ctx, "jti-1")
	require.NoError(t, err)
	require.Zero(t, n)

	live, err := f.repo.IsLive(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, live)

	require.False(t, f.server.Exists("{test:ledger}:jti:jti-1"))
	require.False(t, f.server.Exists("{test:ledger}:user:alice"))
	require.False(t, f.server.Exists("{test:ledger}:expiry"))
}

func TestRevokeAll_LeavesOtherSubjects(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.record(t, "a-1", "alice", time.Hour)
	f.record(t, "a-2", "alice", time.Hour)
	f.record(t, "b-1", "bob", time.Hour)

	n, err := f.repo.RevokeAll(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	live, err := f.repo.IsLive(ctx, "a-2")
	require.NoError(t, err)
	require.False(t, live)

	live, err = f.repo.IsLive(ctx, "b-1")
	require.NoError(t, err)
	require.True(t, live)

	n, err = f.repo.RevokeAll(ctx, "nobody")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestListFor_DecodesRecords(t *testing.T) {
	f := setupTestFixture(t)

	f.record(t, "a-1", "alice", time.Hour)
	f.advance(time.Minute)
	f.record(t, "a-2", "alice", 2*time.Hour)

	records, err := f.repo.ListFor(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "a-2", records[0].JTI)
	require.Equal(t, "alice", records[0].Username)
	require.True(t, records[0].IssuedAt.Equal(f.clock()))
	require.True(t, records[0].ExpiresAt.Equal(f.clock().Add(2*time.Hour)))
	require.Equal(t, "a-1", records[1].JTI)
}

func TestSweepExpired(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.record(t, "short", "alice", time.Minute)
	f.record(t, "exact", "bob", 2*time.Minute)
	f.record(t, "long", "alice", time.Hour)
	f.advance(2 * time.Minute)

	n, err := f.repo.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	records, err := f.repo.ListFor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "long", records[0].JTI)
	require.False(t, f.server.Exists("{test:ledger}:user:bob"))

	n, err = f.repo.SweepExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestUnreachableServer_ReportsLedgerUnavailable(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.server.Close()

	_, err := f.repo.IsLive(ctx, "jti-1")
	require.ErrorIs(t, err, autherrors.ErrLedgerUnavailable)

	err = f.repo.Record(ctx, &ledger.Record{JTI: "jti-1", Username: "alice", ExpiresAt: f.clock().Add(time.Hour)})
	require.ErrorIs(t, err, autherrors.ErrLedgerUnavailable)

	_, err = f.repo.Revoke(ctx, "jti-1")
	require.ErrorIs(t, err, autherrors.ErrLedgerUnavailable)

	_, err = f.repo.ListFor(ctx, "alice")
	require.ErrorIs(t, err, autherrors.ErrLedgerUnavailable)
}

func TestKeysShareOneHashSlot(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	f.record(t, "a-1", "alice", time.Hour)
	f.record(t, "b-1", "bob", time.Hour)

	keys := f.server.Keys()
	require.NotEmpty(t, keys)
	for _, key := range keys {
		require.True(t, strings.HasPrefix(key, "{test:ledger}:"), key)
	}

	plain := redisrepo.NewLedgerRepo(f.client)
	require.NoError(t, plain.Record(ctx, &ledger.Record{JTI: "c-1", Username: "carol", IssuedAt: f.clock(), ExpiresAt: f.clock().Add(time.Hour)}))
	require.True(t, f.server.Exists("{spar:ledger}:jti:c-1"))

	tagged := redisrepo.NewLedgerRepo(f.client, redisrepo.WithPrefix("app:{ledger}"))
	require.NoError(t, tagged.Record(ctx, &ledger.Record{JTI: "d-1", Username: "dave", IssuedAt: f.clock(), ExpiresAt: f.clock().Add(time.Hour)}))
	require.True(t, f.server.Exists("app:{ledger}:jti:d-1"))
}
