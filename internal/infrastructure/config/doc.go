// Package config loads and validates Hearth Cloud configuration.
//
// Configuration comes from a YAML file with environment variable overrides
// for secrets and deployment-specific values. Call Load() once at startup
// and inject the resulting Config (or its sections) into each component.
package config
