package topology

import "errors"

// Topology errors.
var (
	// ErrSiteNotFound indicates the referenced site does not exist.
	ErrSiteNotFound = errors.New("topology: site not found")

	// ErrFloorNotFound indicates the referenced floor does not exist.
	ErrFloorNotFound = errors.New("topology: floor not found")

	// ErrRoomNotFound indicates the referenced room does not exist.
	ErrRoomNotFound = errors.New("topology: room not found")

	// ErrHouseholdNotFound indicates the referenced household does not exist.
	ErrHouseholdNotFound = errors.New("topology: household not found")
)
