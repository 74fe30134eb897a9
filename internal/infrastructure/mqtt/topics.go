package mqtt

import "fmt"

// Topic prefixes for Hearth Cloud event publishing.
//
// Scheme: hearth/{site_id}/{category}/...
// Site-scoped topics let downstream consumers subscribe per tenant.
const (
	// TopicPrefix is the base for all Hearth Cloud topics.
	TopicPrefix = "hearth"

	// TopicPrefixSystem is the base for deployment-wide system topics.
	TopicPrefixSystem = "hearth/system"
)

// Topics provides builders for Hearth Cloud MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// CommandEvent returns the topic for command lifecycle events.
//
// Example: hearth/site-abc/command/queued
func (Topics) CommandEvent(siteID, event string) string {
	return fmt.Sprintf("%s/%s/command/%s", TopicPrefix, siteID, event)
}

// DeviceState returns the topic for derived device state changes.
//
// Example: hearth/site-abc/device/hall-trv/state
func (Topics) DeviceState(siteID, deviceKey string) string {
	return fmt.Sprintf("%s/%s/device/%s/state", TopicPrefix, siteID, deviceKey)
}

// Telemetry returns the topic for accepted sensor readings.
//
// Example: hearth/site-abc/telemetry/hall-trv/temperature
func (Topics) Telemetry(siteID, deviceKey, entityKey string) string {
	return fmt.Sprintf("%s/%s/telemetry/%s/%s", TopicPrefix, siteID, deviceKey, entityKey)
}

// EdgeStatus returns the topic for edge node heartbeat status.
//
// Example: hearth/site-abc/edge/edge-1/status
func (Topics) EdgeStatus(siteID, edgeID string) string {
	return fmt.Sprintf("%s/%s/edge/%s/status", TopicPrefix, siteID, edgeID)
}

// SystemStatus returns the service status topic.
//
// Example: hearth/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
