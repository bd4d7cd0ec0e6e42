package model

import "time"

// Vault is the root container for a note collection. Every operation, blob
// reference, cursor and key envelope belongs to exactly one vault, and a
// vault is owned by exactly one principal.
//
// Vaults are created by the admin tooling; the sync core never renames or
// reassigns them.
type Vault struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Owner     string    `gorm:"index;not null;size:36" json:"owner"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Vault.
func (Vault) TableName() string {
	return "vaults"
}
