package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/obsync/obsync/pkg/model"
)

// CreateDevice persists a new device. If the id is empty a fresh UUID is assigned.
func (s *GORMStore) CreateDevice(ctx context.Context, device *model.Device) (string, error) {
	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	device.CreatedAt = time.Now()

	if err := s.db.WithContext(ctx).Create(device).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", model.ErrDuplicateDevice
		}
		return "", err
	}
	return device.ID, nil
}

// GetDevice returns the device with the given id.
func (s *GORMStore) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	var device model.Device
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&device).Error
	if err != nil {
		return nil, convertNotFoundError(err, model.ErrDeviceNotFound)
	}
	return &device, nil
}

// TouchDevice updates the device's last-seen timestamp. Unknown device ids
// are tolerated: the device id in sync requests is self-asserted and touching
// an unregistered device must not fail the request.
func (s *GORMStore) TouchDevice(ctx context.Context, id string, owner string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&model.Device{}).
		Where("id = ?", id).
		Update("last_seen_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		device := &model.Device{
			ID:         id,
			Owner:      owner,
			LastSeenAt: &now,
		}
		if err := s.db.WithContext(ctx).Create(device).Error; err != nil && !isUniqueConstraintError(err) {
			return err
		}
	}
	return nil
}
