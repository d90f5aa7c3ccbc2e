package devices

import (
	"context"
	"time"
)

// Device is a machine registered by a user to push metrics.
type Device struct {
	ID               uint      `gorm:"primaryKey" json:"deviceId"`
	UserID           uint      `gorm:"not null;index" json:"userId"`
	DeviceName       string    `gorm:"size:255" json:"deviceName"`
	Manufacturer     string    `gorm:"size:255" json:"manufacturer"`
	Model            string    `gorm:"size:255" json:"model"`
	Processor        string    `gorm:"size:255" json:"processor"`
	CPUPhysicalCores int       `json:"cpuPhysicalCores"`
	CPULogicalCores  int       `json:"cpuLogicalCores"`
	InstalledRAM     float64   `json:"installedRam"`
	Graphics         string    `gorm:"size:255" json:"graphics"`
	OperatingSystem  string    `gorm:"size:255" json:"operatingSystem"`
	SystemType       string    `gorm:"size:255" json:"systemType"`
	CreatedAt        time.Time `json:"createdAt"`
}

// SameHardware reports whether d and other describe the same machine.
func (d *Device) SameHardware(other *Device) bool {
	return d.DeviceName == other.DeviceName &&
		d.Manufacturer == other.Manufacturer &&
		d.Model == other.Model
}

// Repo wraps autherrors.ErrNotFound when a device does not exist for the user.
type Repo interface {
	Create(ctx context.Context, device *Device) error
	ListForUser(ctx context.Context, userID uint) ([]*Device, error)
	Get(ctx context.Context, userID, deviceID uint) (*Device, error)
}

type Service struct {
	repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo}
}

// Register adds device for userID unless the same hardware is already
// registered, and returns all of the user's devices.
func (s *Service) Register(ctx context.Context, userID uint, device *Device) ([]*Device, error) {
	existing, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, d := range existing {
		if d.SameHardware(device) {
			return existing, nil
		}
	}

	device.ID = 0
	device.UserID = userID
	if err := s.repo.Create(ctx, device); err != nil {
		return nil, err
	}
	return append(existing, device), nil
}

func (s *Service) List(ctx context.Context, userID uint) ([]*Device, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, deviceID uint) (*Device, error) {
	return s.repo.Get(ctx, userID, deviceID)
}
