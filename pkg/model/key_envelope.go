package model

import "time"

// KeyEnvelope stores a vault key encrypted for one device at one rotation
// version. The ciphertext is completely opaque to the server; the table is
// an opaque key-value mapping keyed by (vault, device, version).
type KeyEnvelope struct {
	VaultID           string    `gorm:"primaryKey;size:36" json:"vault_id"`
	DeviceID          string    `gorm:"primaryKey;size:36" json:"device_id"`
	Version           int       `gorm:"primaryKey" json:"version"`
	EncryptedVaultKey string    `gorm:"not null" json:"encrypted_vault_key"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for KeyEnvelope.
func (KeyEnvelope) TableName() string {
	return "key_envelopes"
}
