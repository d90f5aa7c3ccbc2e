package ledger

import (
	"context"
	"time"
)

// Record is the persisted trace of one issued credential. A credential is only
// ever accepted while its row exists.
type Record struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JTI       string    `gorm:"column:jti;size:64;not null;uniqueIndex" json:"jti"`
	Username  string    `gorm:"size:255;not null;index" json:"username"`
	IssuedAt  time.Time `gorm:"not null" json:"issuedAt"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
}

func (Record) TableName() string {
	return "revocation_records"
}

// Live reports whether the record is still inside its validity window.
func (r Record) Live(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// Repo is the revocation ledger. Implementations wrap autherrors.ErrConflict
// when a jti is recorded twice and autherrors.ErrLedgerUnavailable for any
// storage failure.
type Repo interface {
	Record(ctx context.Context, record *Record) error
	IsLive(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string) (int64, error)
	RevokeAll(ctx context.Context, username string) (int64, error)
	ListFor(ctx context.Context, username string) ([]*Record, error)
	SweepExpired(ctx context.Context) (int64, error)
}
