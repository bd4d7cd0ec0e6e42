// Package model defines the persistent entities of the Obsync metadata store
// and the domain errors shared across components.
package model

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&Vault{},
		&Device{},
		&Operation{},
		&SyncCursor{},
		&Blob{},
		&BlobChunk{},
		&KeyEnvelope{},
	}
}
