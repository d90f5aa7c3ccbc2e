// Package gormrepo stores the revocation ledger in a SQL database through gorm.
package gormrepo

import (
	"context"
	"errors"
	"time"

	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/jrsteele09/go-spar-server/ledger"
	"gorm.io/gorm"
)

var _ ledger.Repo = (*LedgerRepo)(nil)

type LedgerRepo struct {
	db      *gorm.DB
	nowFunc func() time.Time
}

type Option func(*LedgerRepo)

func WithNowFunc(now func() time.Time) Option {
	return func(r *LedgerRepo) {
		r.nowFunc = now
	}
}

// NewLedgerRepo expects the revocation_records table to exist; see database.Migrate.
func NewLedgerRepo(db *gorm.DB, options ...Option) *LedgerRepo {
	r := &LedgerRepo{
		db:      db,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *LedgerRepo) Record(ctx context.Context, record *ledger.Record) error {
	record.IssuedAt = record.IssuedAt.UTC()
	record.ExpiresAt = record.ExpiresAt.UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ledger.Record{}).Where("jti = ?", record.JTI).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return autherrors.ErrConflict
		}
		return tx.Create(record).Error
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, autherrors.ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return autherrors.Mark(autherrors.ErrConflict, nil, "LedgerRepo.Record jti "+record.JTI)
	default:
		return autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "LedgerRepo.Record")
	}
}

func (r *LedgerRepo) IsLive(ctx context.Context, jti string) (bool, error) {
	var record ledger.Record
	err := r.db.WithContext(ctx).Where("jti = ?", jti).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "LedgerRepo.IsLive")
	}
	return record.Live(r.nowFunc()), nil
}

func (r *LedgerRepo) Revoke(ctx context.Context, jti string) (int64, error) {
	result := r.db.WithContext(ctx).Where("jti = ?", jti).Delete(&ledger.Record{})
	if result.Error != nil {
		return 0, autherrors.Mark(autherrors.ErrLedgerUnavailable, result.Error, "LedgerRepo.Revoke")
	}
	return result.RowsAffected, nil
}

func (r *LedgerRepo) RevokeAll(ctx context.Context, username string) (int64, error) {
	result := r.db.WithContext(ctx).Where("username = ?", username).Delete(&ledger.Record{})
	if result.Error != nil {
		return 0, autherrors.Mark(autherrors.ErrLedgerUnavailable, result.Error, "LedgerRepo.RevokeAll")
	}
	return result.RowsAffected, nil
}

func (r *LedgerRepo) ListFor(ctx context.Context, username string) ([]*ledger.Record, error) {
	records := make([]*ledger.Record, 0)
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("issued_at desc").
		Order("id desc").
		Find(&records).Error
	if err != nil {
		return nil, autherrors.Mark(autherrors.ErrLedgerUnavailable, err, "LedgerRepo.ListFor")
	}
	return records, nil
}

// SweepExpired deletes every record with expires_at <= now. Times are stored in
// whole UTC seconds, so the comparison is also safe on SQLite's text encoding.
func (r *LedgerRepo) SweepExpired(ctx context.Context) (int64, error) {
	now := r.nowFunc().UTC().Truncate(time.Second)
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&ledger.Record{})
	if result.Error != nil {
		return 0, autherrors.Mark(autherrors.ErrLedgerUnavailable, result.Error, "LedgerRepo.SweepExpired")
	}
	return result.RowsAffected, nil
}
