package registry

import "errors"

// Registry errors.
var (
	// ErrDeviceNotFound indicates the referenced device does not exist.
	ErrDeviceNotFound = errors.New("registry: device not found")

	// ErrMissingDeviceKey indicates a batch row without a device key.
	ErrMissingDeviceKey = errors.New("registry: missing deviceKey")

	// ErrMissingName indicates a batch row without a display name.
	ErrMissingName = errors.New("registry: missing name")

	// ErrMissingSite indicates a row that resolves to no site at all.
	ErrMissingSite = errors.New("registry: missing site reference")

	// ErrMissingEntityKey indicates an entity row without an entity key.
	ErrMissingEntityKey = errors.New("registry: missing entityKey")
)
