// Package classify reconciles inconsistent device metadata into a
// canonical type and coarse domain.
//
// Edges announce devices with whatever metadata their local integrations
// expose: a domain hint, a device class, free-text names and model
// strings, and externally-namespaced entity ids. The classifier maps all
// of that onto one closed set of device types via an ordered rule table;
// the first matching rule wins and unmatched input falls back to the
// generic sensor type. Classification is pure and never fails.
package classify
