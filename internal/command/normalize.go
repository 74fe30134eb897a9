package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Intent is a high-level user action against a device, before
// normalization into an edge-executable service call.
type Intent struct {
	Action     string         `json:"action"`
	Value      any            `json:"value,omitempty"`
	EntityKey  string         `json:"entityKey,omitempty"`
	HAEntityID string         `json:"haEntityId,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// EntityRef identifies one of a device's entities for target resolution.
type EntityRef struct {
	EntityKey  string
	HAEntityID string
}

// Normalized is the structured payload an edge executor understands.
type Normalized struct {
	Domain     string         `json:"domain"`
	Action     string         `json:"action"`
	Data       map[string]any `json:"data,omitempty"`
	EntityKey  string         `json:"entityKey,omitempty"`
	HAEntityID string         `json:"haEntityId,omitempty"`
}

// rewrite adjusts an intent's action and data for one domain. It must
// not mutate the intent; data is the output map to fill.
type rewrite func(in Intent, data map[string]any) (action string, err error)

// domainRewrites is the normalization table, keyed by device domain then
// by incoming action. Domains without an entry pass actions through
// unchanged. New domain rules are added here, never at call sites.
var domainRewrites = map[string]map[string]rewrite{
	"climate": {
		// A generic on/off against a thermostat becomes a mode set; the
		// default running mode for residential TRVs is heat.
		"on": func(in Intent, data map[string]any) (string, error) {
			if _, ok := data["hvac_mode"]; !ok {
				data["hvac_mode"] = "heat"
			}
			return "set_hvac_mode", nil
		},
		"off": func(in Intent, data map[string]any) (string, error) {
			data["hvac_mode"] = "off"
			return "set_hvac_mode", nil
		},
		"set_temperature": func(in Intent, data map[string]any) (string, error) {
			if _, ok := data["temperature"]; !ok {
				target, err := numericIntentValue(in.Value)
				if err != nil {
					return "", fmt.Errorf("%w: set_temperature needs a numeric value", ErrUnsupportedAction)
				}
				data["temperature"] = target
			}
			// Actuators accept half-degree steps.
			if t, ok := data["temperature"].(float64); ok {
				data["temperature"] = math.Round(t*2) / 2
			}
			return "set_temperature", nil
		},
	},
	"light": {
		"set_brightness": func(in Intent, data map[string]any) (string, error) {
			if _, ok := data["brightness"]; !ok {
				level, err := numericIntentValue(in.Value)
				if err != nil {
					return "", fmt.Errorf("%w: set_brightness needs a numeric value", ErrUnsupportedAction)
				}
				data["brightness"] = level
			}
			return "set_brightness", nil
		},
	},
	"cover": {
		"on":  passthroughAs("open"),
		"off": passthroughAs("close"),
	},
}

func passthroughAs(action string) rewrite {
	return func(Intent, map[string]any) (string, error) { return action, nil }
}

// Normalize turns a user intent into the structured payload for an edge
// executor.
//
// Target resolution happens first: an explicit entity reference on the
// intent wins; otherwise the device's entities are searched, preferring
// one namespaced under the device's own domain. Failure to resolve any
// target is a hard error and the command must not be enqueued.
//
// Parameters:
//   - domain: The device's coarse domain, selecting the rewrite table
//   - entities: The device's registered entities for target resolution
//   - in: The user intent
//
// Returns:
//   - *Normalized: The edge-executable call
//   - error: ErrMissingTarget or ErrUnsupportedAction
func Normalize(domain string, entities []EntityRef, in Intent) (*Normalized, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))

	entityKey, haEntityID := resolveTarget(domain, entities, in)
	if entityKey == "" && haEntityID == "" {
		return nil, ErrMissingTarget
	}

	data := make(map[string]any, len(in.Data)+1)
	for k, v := range in.Data {
		data[k] = v
	}

	action := strings.ToLower(strings.TrimSpace(in.Action))
	if rules, ok := domainRewrites[domain]; ok {
		if rw, ok := rules[action]; ok {
			rewritten, err := rw(in, data)
			if err != nil {
				return nil, err
			}
			action = rewritten
		}
	}

	return &Normalized{
		Domain:     domain,
		Action:     action,
		Data:       data,
		EntityKey:  entityKey,
		HAEntityID: haEntityID,
	}, nil
}

// resolveTarget picks the entity the command addresses. An explicit
// reference on the intent wins; otherwise the first entity namespaced
// under the device's own domain, then any entity with an external id,
// then any entity at all.
func resolveTarget(domain string, entities []EntityRef, in Intent) (entityKey, haEntityID string) {
	if in.EntityKey != "" || in.HAEntityID != "" {
		return in.EntityKey, in.HAEntityID
	}

	prefix := domain + "."
	for _, e := range entities {
		if strings.HasPrefix(strings.ToLower(e.HAEntityID), prefix) {
			return e.EntityKey, e.HAEntityID
		}
	}
	for _, e := range entities {
		if e.HAEntityID != "" {
			return e.EntityKey, e.HAEntityID
		}
	}
	for _, e := range entities {
		if e.EntityKey != "" {
			return e.EntityKey, ""
		}
	}
	return "", ""
}

func numericIntentValue(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing value: %w", err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}
