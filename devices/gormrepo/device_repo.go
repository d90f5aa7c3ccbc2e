package gormrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-spar-server/devices"
	autherrors "github.com/jrsteele09/go-spar-server/internal/errors"
	"gorm.io/gorm"
)

var _ devices.Repo = (*DeviceRepo)(nil)

type DeviceRepo struct {
	db *gorm.DB
}

func NewDeviceRepo(db *gorm.DB) *DeviceRepo {
	return &DeviceRepo{db: db}
}

func (r *DeviceRepo) Create(ctx context.Context, device *devices.Device) error {
	if err := r.db.WithContext(ctx).Create(device).Error; err != nil {
		return autherrors.Wrapf(err, "DeviceRepo.Create")
	}
	return nil
}

func (r *DeviceRepo) ListForUser(ctx context.Context, userID uint) ([]*devices.Device, error) {
	list := make([]*devices.Device, 0)
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&list).Error; err != nil {
		return nil, autherrors.Wrapf(err, "DeviceRepo.ListForUser")
	}
	return list, nil
}

func (r *DeviceRepo) Get(ctx context.Context, userID, deviceID uint) (*devices.Device, error) {
	var device devices.Device
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", deviceID, userID).Take(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, autherrors.Mark(autherrors.ErrNotFound, nil, fmt.Sprintf("DeviceRepo.Get device %d", deviceID))
	}
	if err != nil {
		return nil, autherrors.Wrapf(err, "DeviceRepo.Get")
	}
	return &device, nil
}
