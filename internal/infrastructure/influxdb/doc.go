// Package influxdb provides the optional telemetry history mirror.
//
// SQLite remains the source of truth for latest values and recent
// history; this client mirrors accepted readings into InfluxDB for
// long-range queries and dashboarding. Writes are non-blocking and
// batched, and a mirror outage never fails an ingest.
package influxdb
