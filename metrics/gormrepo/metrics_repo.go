package gormrepo

import (
	"context"
	"fmt"

	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"github.com/jrsteele09/go-spar-server/metrics"
	"gorm.io/gorm"
)

var _ metrics.Repo = (*MetricsRepo)(nil)

type MetricsRepo struct {
	db *gorm.DB
}

func NewMetricsRepo(db *gorm.DB) *MetricsRepo {
	return &MetricsRepo{db: db}
}

func (r *MetricsRepo) SaveBatch(ctx context.Context, batch *metrics.Batch) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range singles(batch) {
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		if disks := compact(batch.DiskUsage); len(disks) > 0 {
			if err := tx.Create(&disks).Error; err != nil {
				return err
			}
		}
		if procs := compact(batch.ProcessStatuses); len(procs) > 0 {
			if err := tx.Create(&procs).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return autherrors.Wrapf(err, "MetricsRepo.SaveBatch")
	}
	return nil
}

func singles(batch *metrics.Batch) []any {
	rows := make([]any, 0, 4)
	if batch.BatteryInfo != nil {
		rows = append(rows, batch.BatteryInfo)
	}
	if batch.CPUUsage != nil {
		rows = append(rows, batch.CPUUsage)
	}
	if batch.RAMUsage != nil {
		rows = append(rows, batch.RAMUsage)
	}
	if batch.DiskIO != nil {
		rows = append(rows, batch.DiskIO)
	}
	return rows
}

// compact drops nil entries, which a JSON array of nulls decodes to.
func compact[T any](rows []*T) []*T {
	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, row)
		}
	}
	return out
}

func (r *MetricsRepo) History(ctx context.Context, kind metrics.Kind, userID, deviceID uint, limit int) (any, error) {
	switch kind {
	case metrics.KindBattery:
		return history[metrics.BatteryInfo](ctx, r.db, userID, deviceID, limit)
	case metrics.KindCPU:
		return history[metrics.CPUUsage](ctx, r.db, userID, deviceID, limit)
	case metrics.KindRAM:
		return history[metrics.RAMUsage](ctx, r.db, userID, deviceID, limit)
	case metrics.KindDiskIO:
		return history[metrics.DiskIO](ctx, r.db, userID, deviceID, limit)
	case metrics.KindDiskUsage:
		return history[metrics.DiskUsage](ctx, r.db, userID, deviceID, limit)
	case metrics.KindProcess:
		return history[metrics.ProcessStatus](ctx, r.db, userID, deviceID, limit)
	default:
		return nil, autherrors.Mark(autherrors.ErrInvalidArgument, nil, fmt.Sprintf("MetricsRepo.History kind %q", kind))
	}
}

func history[T any](ctx context.Context, db *gorm.DB, userID, deviceID uint, limit int) ([]T, error) {
	rows := make([]T, 0)
	err := db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Order("timestamp desc").
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, autherrors.Wrapf(err, "MetricsRepo.History")
	}
	return rows, nil
}
