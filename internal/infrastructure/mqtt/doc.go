// Package mqtt provides the optional event publisher for Hearth Cloud.
//
// The cloud publishes command lifecycle events, telemetry notifications,
// and its own online status to site-scoped topics under hearth/. The
// publisher is strictly outbound; no subscriptions are made. When MQTT
// is disabled in config the rest of the system runs unchanged.
package mqtt
