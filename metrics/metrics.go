// Package metrics stores the hardware samples pushed by registered devices.
package metrics

import (
	"bytes"
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"github.com/jrsteele09/go-spar-server/devices"
)

// Kind names one sample series, as used in /api/metrics/{kind}/... paths.
type Kind string

const (
	KindBattery   Kind = "battery-info"
	KindCPU       Kind = "cpu-usage"
	KindRAM       Kind = "ram-usage"
	KindDiskIO    Kind = "disk-io"
	KindDiskUsage Kind = "disk-usage"
	KindProcess   Kind = "process-status"
)

var kinds = map[Kind]struct{}{
	KindBattery:   {},
	KindCPU:       {},
	KindRAM:       {},
	KindDiskIO:    {},
	KindDiskUsage: {},
	KindProcess:   {},
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("unknown metric kind %q", s)
	}
	return k, nil
}

// Sample is embedded in every stored series.
type Sample struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	DeviceID  uint      `gorm:"not null;index" json:"deviceId"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}

func (s *Sample) stamp(userID, deviceID uint, at time.Time) {
	s.ID = 0
	s.UserID = userID
	s.DeviceID = deviceID
	s.Timestamp = at
}

// Flag is a boolean that also decodes from 1/0, the form the desktop agent
// posts. It always encodes as a JSON boolean.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	switch string(data) {
	case "null":
		return nil
	case "true":
		*f = true
		return nil
	case "false":
		*f = false
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("metrics.Flag: invalid value %q", data)
	}
	*f = n != 0
	return nil
}

func (f Flag) Value() (driver.Value, error) {
	return bool(f), nil
}

func (f *Flag) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(v)
	case int64:
		*f = v != 0
	case []byte:
		return f.UnmarshalJSON(v)
	case string:
		return f.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("metrics.Flag: cannot scan %T", src)
	}
	return nil
}

type BatteryInfo struct {
	Sample
	HasBattery        Flag    `json:"hasBattery"`
	BatteryPercentage float64 `json:"batteryPercentage"`
	IsCharging        Flag    `json:"isCharging"`
	PowerConsumption  float64 `json:"powerConsumption"`
}

type CPUUsage struct {
	Sample
	TotalCPULoad     float64 `json:"totalCpuLoad"`
	PerCoreUsageJSON string  `gorm:"type:text" json:"perCoreUsageJson"`
	LogicalCoreCount int     `json:"logicalCoreCount"`
}

type RAMUsage struct {
	Sample
	TotalMemory     float64 `json:"totalMemory"`
	UsedMemory      float64 `json:"usedMemory"`
	AvailableMemory float64 `json:"availableMemory"`
}

type DiskIO struct {
	Sample
	ReadSpeedMBps  float64 `json:"readSpeedMBps"`
	WriteSpeedMBps float64 `json:"writeSpeedMBps"`
}

type DiskUsage struct {
	Sample
	Filesystem  string  `gorm:"size:255" json:"filesystem"`
	SizeGB      float64 `json:"sizeGB"`
	UsedGB      float64 `json:"usedGB"`
	AvailableGB float64 `json:"availableGB"`
}

type ProcessStatus struct {
	Sample
	PID      int     `json:"pid"`
	Name     string  `gorm:"size:255" json:"name"`
	CPUUsage float64 `json:"cpuUsage"`
	MemoryMB float64 `json:"memoryMB"`
}

// Batch is one poll of a device. Any series may be absent. DiskUsage holds one
// row per mounted filesystem.
type Batch struct {
	UserID          uint
	DeviceID        uint
	BatteryInfo     *BatteryInfo
	CPUUsage        *CPUUsage
	RAMUsage        *RAMUsage
	DiskIO          *DiskIO
	DiskUsage       []*DiskUsage
	ProcessStatuses []*ProcessStatus
}

// Stamp sets ownership and the sample time on every series in the batch.
func (b *Batch) Stamp(at time.Time) {
	if b.BatteryInfo != nil {
		b.BatteryInfo.stamp(b.UserID, b.DeviceID, at)
	}
	if b.CPUUsage != nil {
		b.CPUUsage.stamp(b.UserID, b.DeviceID, at)
	}
	if b.RAMUsage != nil {
		b.RAMUsage.stamp(b.UserID, b.DeviceID, at)
	}
	if b.DiskIO != nil {
		b.DiskIO.stamp(b.UserID, b.DeviceID, at)
	}
	for _, d := range b.DiskUsage {
		if d != nil {
			d.stamp(b.UserID, b.DeviceID, at)
		}
	}
	for _, p := range b.ProcessStatuses {
		if p != nil {
			p.stamp(b.UserID, b.DeviceID, at)
		}
	}
}

// Repo persists batches atomically and reads one series newest first.
type Repo interface {
	SaveBatch(ctx context.Context, batch *Batch) error
	History(ctx context.Context, kind Kind, userID, deviceID uint, limit int) (any, error)
}

// DeviceLookup confirms a device belongs to a user.
type DeviceLookup interface {
	Get(ctx context.Context, userID, deviceID uint) (*devices.Device, error)
}

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

type Service struct {
	repo    Repo
	devices DeviceLookup
	nowFunc func() time.Time
}

type ServiceOption func(*Service)

func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func NewService(repo Repo, devices DeviceLookup, options ...ServiceOption) *Service {
	s := &Service{
		repo:    repo,
		devices: devices,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Ingest stores batch once the device is confirmed to belong to batch.UserID.
func (s *Service) Ingest(ctx context.Context, batch *Batch) error {
	if _, err := s.devices.Get(ctx, batch.UserID, batch.DeviceID); err != nil {
		return err
	}
	batch.Stamp(s.nowFunc().UTC())
	return s.repo.SaveBatch(ctx, batch)
}

// History returns up to limit samples of kind for the device, newest first.
func (s *Service) History(ctx context.Context, kind Kind, userID, deviceID uint, limit int) (any, error) {
	if _, err := s.devices.Get(ctx, userID, deviceID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.repo.History(ctx, kind, userID, deviceID, limit)
}
