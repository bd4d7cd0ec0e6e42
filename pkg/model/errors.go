package model

import "errors"

// Domain errors returned by the metadata store. Handlers translate these to
// the wire-level error envelope.
var (
	// ErrVaultNotFound is returned when a vault does not exist or is not
	// owned by the requesting principal. The two cases are deliberately
	// indistinguishable to avoid vault-id probing.
	ErrVaultNotFound = errors.New("vault not found")

	ErrDeviceNotFound = errors.New("device not found")

	ErrBlobNotFound = errors.New("blob not found")

	ErrChunkNotFound = errors.New("chunk not found")

	ErrKeyEnvelopeNotFound = errors.New("key envelope not found")

	ErrDuplicateVault = errors.New("vault already exists")

	ErrDuplicateDevice = errors.New("device already exists")
)
