package telemetry

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/logging"
)

// Mirror receives a copy of every applied reading. The InfluxDB history
// mirror implements this; ingest never fails because a mirror does.
type Mirror interface {
	WriteReading(siteID, deviceKey, entityKey string, value float64, unit string, recordedAt time.Time)
}

// Service ingests telemetry batches from edges into the latest-value
// cache and append-only history.
type Service struct {
	repo    Repository
	mirrors []Mirror
	logger  *logging.Logger
}

// NewService creates a telemetry service. Mirrors are optional.
func NewService(repo Repository, logger *logging.Logger, mirrors ...Mirror) *Service {
	return &Service{
		repo:    repo,
		mirrors: mirrors,
		logger:  logger.With("component", "telemetry"),
	}
}

// Ingest applies a batch of sensor items.
//
// Each item with a numeric value is appended to history and upserted
// into the latest-value cache, last write wins by arrival order. Items
// with non-numeric values are counted as skipped and the batch
// continues. Incoming timestamps are stored but not compared against the
// cached row, so out-of-order delivery can regress the cache.
func (s *Service) Ingest(ctx context.Context, siteID, householdID string, items []Item) (*IngestResult, error) {
	result := &IngestResult{}

	for _, item := range items {
		value, ok := numericValue(item.Value)
		if !ok || item.DeviceKey == "" || item.EntityKey == "" {
			result.Skipped++
			continue
		}

		recordedAt := time.Now().UTC()
		if item.TS != "" {
			if t, err := time.Parse(time.RFC3339, item.TS); err == nil {
				recordedAt = t.UTC()
			}
		}

		latest := &LatestValue{
			SiteID:      siteID,
			DeviceKey:   item.DeviceKey,
			EntityKey:   item.EntityKey,
			Value:       value,
			Unit:        item.Unit,
			Domain:      item.Domain,
			DeviceClass: item.DeviceClass,
			StateClass:  item.StateClass,
			HAEntityID:  item.HAEntityID,
			RecordedAt:  recordedAt,
		}
		if err := s.repo.Apply(ctx, latest); err != nil {
			return result, err
		}
		result.Upserted++

		for _, mirror := range s.mirrors {
			mirror.WriteReading(siteID, item.DeviceKey, item.EntityKey, value, item.Unit, recordedAt)
		}
	}

	s.logger.Debug("telemetry batch ingested",
		"site_id", siteID,
		"household_id", householdID,
		"upserted", result.Upserted,
		"skipped", result.Skipped,
	)
	return result, nil
}

// Latest retrieves the latest value for one key.
func (s *Service) Latest(ctx context.Context, siteID, deviceKey, entityKey string) (*LatestValue, error) {
	return s.repo.GetLatest(ctx, siteID, deviceKey, entityKey)
}

// DeviceLatest retrieves all latest values of one device.
func (s *Service) DeviceLatest(ctx context.Context, siteID, deviceKey string) ([]LatestValue, error) {
	return s.repo.ListLatestByDevice(ctx, siteID, deviceKey)
}

// History retrieves up to limit readings for one key, newest first.
func (s *Service) History(ctx context.Context, siteID, deviceKey, entityKey string, limit int) ([]Reading, error) {
	return s.repo.History(ctx, siteID, deviceKey, entityKey, limit)
}

// numericValue coerces an arbitrary JSON value to float64. Numbers pass
// through, numeric strings parse, booleans map to 1/0, everything else
// is rejected.
func numericValue(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// EntityState is one entity's textual state, as consumed by ComputeIsOn.
type EntityState struct {
	EntityKey string
	State     string
}

// climateOnModes are hvac mode tokens that mean the unit is running.
var climateOnModes = map[string]bool{
	"heat": true, "cool": true, "auto": true, "dry": true,
	"fan_only": true, "heat_cool": true,
}

// onTokens and offTokens are the generic on/off vocabulary.
var (
	onTokens  = map[string]bool{"on": true, "true": true, "1": true, "open": true, "home": true}
	offTokens = map[string]bool{"off": true, "false": true, "0": true, "closed": true, "away": true}
)

// ComputeIsOn reduces a device's entity states to a single on/off flag
// for presentation.
//
// Climate devices are judged by their mode-like entities against the
// hvac vocabulary; everything else by state/power/switch-like entities
// against the generic on/off vocabulary. Unrecognized vocabulary falls
// back to the supplied default rather than failing.
func ComputeIsOn(domain string, entities []EntityState, fallback bool) bool {
	if strings.EqualFold(domain, "climate") {
		for _, e := range entities {
			key := strings.ToLower(e.EntityKey)
			if !strings.Contains(key, "mode") && !strings.Contains(key, "hvac") && key != "state" {
				continue
			}
			state := strings.ToLower(strings.TrimSpace(e.State))
			if climateOnModes[state] {
				return true
			}
			if state == "off" {
				return false
			}
		}
		return fallback
	}

	for _, e := range entities {
		key := strings.ToLower(e.EntityKey)
		if key != "state" && !strings.Contains(key, "power") && !strings.Contains(key, "switch") && key != "on" {
			continue
		}
		state := strings.ToLower(strings.TrimSpace(e.State))
		if onTokens[state] {
			return true
		}
		if offTokens[state] {
			return false
		}
	}
	return fallback
}
