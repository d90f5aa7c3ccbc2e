package fakeledgerrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/jrsteele09/go-spar-server/ledger"
)

var _ ledger.Repo = (*FakeLedgerRepo)(nil)

// FakeLedgerRepo is an in-memory ledger. SetFailure makes every call fail as
// if the backing store were unreachable.
type FakeLedgerRepo struct {
	records map[string]*ledger.Record
	nextID  uint
	nowFunc func() time.Time
	failure error
	lock    sync.RWMutex
}

func NewFakeLedgerRepo() *FakeLedgerRepo {
	return &FakeLedgerRepo{
		records: make(map[string]*ledger.Record),
		nowFunc: time.Now,
	}
}

func (r *FakeLedgerRepo) SetNowFunc(now func() time.Time) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.nowFunc = now
}

// SetFailure injects err as the storage failure; nil restores normal behaviour.
func (r *FakeLedgerRepo) SetFailure(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.failure = err
}

func (r *FakeLedgerRepo) fail(op string) error {
	if r.failure == nil {
		return nil
	}
	return autherrors.Mark(autherrors.ErrLedgerUnavailable, r.failure, op)
}

func (r *FakeLedgerRepo) Record(_ context.Context, record *ledger.Record) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.fail("FakeLedgerRepo.Record"); err != nil {
		return err
	}
	if _, exists := r.records[record.JTI]; exists {
		return autherrors.Mark(autherrors.ErrConflict, nil, "FakeLedgerRepo.Record jti "+record.JTI)
	}

	r.nextID++
	record.ID = r.nextID
	stored := *record
	r.records[record.JTI] = &stored
	return nil
}

func (r *FakeLedgerRepo) IsLive(_ context.Context, jti string) (bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if err := r.fail("FakeLedgerRepo.IsLive"); err != nil {
		return false, err
	}
	record, ok := r.records[jti]
	if !ok {
		return false, nil
	}
	return record.Live(r.nowFunc()), nil
}

func (r *FakeLedgerRepo) Revoke(_ context.Context, jti string) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.fail("FakeLedgerRepo.Revoke"); err != nil {
		return 0, err
	}
	if _, ok := r.records[jti]; !ok {
		return 0, nil
	}
	delete(r.records, jti)
	return 1, nil
}

func (r *FakeLedgerRepo) RevokeAll(_ context.Context, username string) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.fail("FakeLedgerRepo.RevokeAll"); err != nil {
		return 0, err
	}
	var n int64
	for jti, record := range r.records {
		if record.Username == username {
			delete(r.records, jti)
			n++
		}
	}
	return n, nil
}

func (r *FakeLedgerRepo) ListFor(_ context.Context, username string) ([]*ledger.Record, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if err := r.fail("FakeLedgerRepo.ListFor"); err != nil {
		return nil, err
	}
	records := make([]*ledger.Record, 0)
	for _, record := range r.records {
		if record.Username == username {
			copied := *record
			records = append(records, &copied)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID > records[j].ID
	})
	return records, nil
}

func (r *FakeLedgerRepo) SweepExpired(_ context.Context) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.fail("FakeLedgerRepo.SweepExpired"); err != nil {
		return 0, err
	}
	now := r.nowFunc()
	var n int64
	for jti, record := range r.records {
		if !record.Live(now) {
			delete(r.records, jti)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records, live or not.
func (r *FakeLedgerRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.records)
}
