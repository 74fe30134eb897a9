package telemetry

import "time"

// Item is one sensor observation inside an ingest batch. Value arrives
// as arbitrary JSON; non-numeric values are skipped individually without
// failing the batch.
type Item struct {
	DeviceKey   string `json:"deviceKey"`
	EntityKey   string `json:"entityKey"`
	Value       any    `json:"value"`
	TS          string `json:"ts,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Domain      string `json:"domain,omitempty"`
	DeviceClass string `json:"deviceClass,omitempty"`
	StateClass  string `json:"stateClass,omitempty"`
	HAEntityID  string `json:"haEntityId,omitempty"`
}

// LatestValue is the single most-recent observation for one
// (siteId, deviceKey, entityKey) key. A read-optimized cache, not
// authoritative history.
type LatestValue struct {
	SiteID      string    `json:"siteId"`
	DeviceKey   string    `json:"deviceKey"`
	EntityKey   string    `json:"entityKey"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	DeviceClass string    `json:"deviceClass,omitempty"`
	StateClass  string    `json:"stateClass,omitempty"`
	HAEntityID  string    `json:"haEntityId,omitempty"`
	RecordedAt  time.Time `json:"recordedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Reading is one appended history row. History is append-only and the
// source of truth for audit and analytics.
type Reading struct {
	ID         int64     `json:"id"`
	SiteID     string    `json:"siteId"`
	DeviceKey  string    `json:"deviceKey"`
	EntityKey  string    `json:"entityKey"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// IngestResult summarizes an ingest batch.
type IngestResult struct {
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
}
