package model

import "time"

// Device is a client endpoint bound to a principal. The public key is opaque
// to the sync core; it is stored for clients to exchange key envelopes.
//
// LastSeenAt is touched on every authenticated push or pull. The device id in
// a push body is self-asserted; the core does not verify that a request
// actually originates from the stored public key.
type Device struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Owner       string     `gorm:"index;not null;size:36" json:"owner"`
	DisplayName string     `gorm:"size:255" json:"display_name,omitempty"`
	PublicKey   string     `json:"public_key,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
}

// TableName returns the table name for Device.
func (Device) TableName() string {
	return "devices"
}
