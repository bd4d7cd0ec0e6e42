package model

import "time"

// SyncCursor records the highest sequence a device has applied for a vault.
// It is monotonic non-decreasing per (device, vault): push sets it, pull
// advances it with max-with-current semantics.
type SyncCursor struct {
	DeviceID       string    `gorm:"primaryKey;size:36" json:"device_id"`
	VaultID        string    `gorm:"primaryKey;size:36" json:"vault_id"`
	LastAppliedSeq int64     `gorm:"not null" json:"last_applied_seq"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for SyncCursor.
func (SyncCursor) TableName() string {
	return "sync_cursors"
}
