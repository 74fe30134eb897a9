// Package telemetry maintains the latest-value cache and append-only
// reading history for edge-reported sensor data.
//
// Every valid item in an ingest batch is appended to history and applied
// to the one-row-per-key latest cache, last write wins. Non-numeric
// values are skipped individually; a batch never aborts as a whole.
package telemetry
