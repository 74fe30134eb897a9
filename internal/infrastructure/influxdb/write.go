package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteReading mirrors one accepted sensor reading.
//
// This satisfies the telemetry ingest's mirror hook. The write is
// non-blocking; points are batched and sent asynchronously.
//
// Parameters:
//   - siteID: Tenant site the reading belongs to
//   - deviceKey: Edge-stable device key (e.g., "hall-trv")
//   - entityKey: Entity within the device (e.g., "temperature")
//   - value: The numeric value
//   - unit: Unit of measurement (may be empty)
//   - recordedAt: When the edge recorded the reading
func (c *Client) WriteReading(siteID, deviceKey, entityKey string, value float64, unit string, recordedAt time.Time) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"site_id":    siteID,
		"device_key": deviceKey,
		"entity_key": entityKey,
	}
	if unit != "" {
		tags["unit"] = unit
	}

	point := write.NewPoint(
		"sensor_readings",
		tags,
		map[string]interface{}{
			"value": value,
		},
		recordedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the reading helper, such as
// service counters.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
