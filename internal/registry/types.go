package registry

import (
	"time"

	"github.com/hearthlabs/hearth-cloud/internal/classify"
)

// Device is a physical unit registered under a household and site. The
// upsert key is (householdId, deviceKey); deviceKey is the edge-local
// stable identifier and survives reconnects.
type Device struct {
	ID          string              `json:"id"`
	HouseholdID string              `json:"householdId"`
	SiteID      string              `json:"siteId"`
	RoomID      *string             `json:"roomId,omitempty"`
	FloorID     *string             `json:"floorId,omitempty"`
	DeviceKey   string              `json:"deviceKey"`
	Name        string              `json:"name"`
	Type        classify.DeviceType `json:"type"`
	Domain      string              `json:"domain"`

	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	SWVersion    string `json:"swVersion,omitempty"`
	Position     string `json:"position,omitempty"`

	IsOn     bool `json:"isOn"`
	IsOnline bool `json:"isOnline"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Entity is a sub-addressable capability of a device, keyed by
// (siteId, deviceKey, entityKey). An entity may be registered before its
// parent device; the key ties them together without a foreign key.
type Entity struct {
	ID          string `json:"id"`
	SiteID      string `json:"siteId"`
	DeviceKey   string `json:"deviceKey"`
	EntityKey   string `json:"entityKey"`
	Name        string `json:"name,omitempty"`
	Domain      string `json:"domain,omitempty"`
	DeviceClass string `json:"deviceClass,omitempty"`
	Unit        string `json:"unit,omitempty"`
	StateClass  string `json:"stateClass,omitempty"`
	HAEntityID  string `json:"haEntityId,omitempty"`

	// Capabilities is an opaque JSON descriptor of what the channel can do.
	Capabilities string `json:"capabilities,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DeviceRow is one device in a registration batch as announced by an
// edge. Rows are processed independently; a bad row never aborts the
// batch.
type DeviceRow struct {
	DeviceKey   string  `json:"deviceKey"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Domain      string  `json:"domain,omitempty"`
	DeviceClass string  `json:"deviceClass,omitempty"`
	HouseholdID string  `json:"householdId,omitempty"`
	SiteID      string  `json:"siteId,omitempty"`
	RoomID      string  `json:"roomId,omitempty"`
	RoomName    string  `json:"roomName,omitempty"`
	FloorID     *string `json:"floorId,omitempty"`

	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	SWVersion    string `json:"swVersion,omitempty"`
	Position     string `json:"pos,omitempty"`

	Entities []EntityRow `json:"entities,omitempty"`
}

// EntityRow is one entity declaration inside a device row or an
// entity-only batch.
type EntityRow struct {
	DeviceKey    string `json:"deviceKey,omitempty"`
	EntityKey    string `json:"entityKey"`
	Name         string `json:"name,omitempty"`
	Domain       string `json:"domain,omitempty"`
	DeviceClass  string `json:"deviceClass,omitempty"`
	Unit         string `json:"unit,omitempty"`
	StateClass   string `json:"stateClass,omitempty"`
	HAEntityID   string `json:"haEntityId,omitempty"`
	Capabilities string `json:"capabilities,omitempty"`
}

// RowResult reports the outcome of one row in a batch.
type RowResult struct {
	DeviceKey string `json:"deviceKey"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`
}

// RegisterResult summarizes a device registration batch.
type RegisterResult struct {
	Upserted         int         `json:"upserted"`
	EntitiesUpserted int         `json:"entitiesUpserted"`
	Rows             []RowResult `json:"devices"`
}
