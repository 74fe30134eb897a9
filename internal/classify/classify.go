package classify

import (
	"regexp"
	"strings"
)

// Meta carries the loosely-structured metadata an edge announces for a
// device. All fields are optional; the classifier works with whatever
// signals are present.
type Meta struct {
	Domain       string
	DeviceClass  string
	Name         string
	Label        string
	Model        string
	Manufacturer string
	TypeHint     string

	// EntityIDs are external entity references whose prefix encodes the
	// native domain (e.g. "climate.living_trv" -> "climate").
	EntityIDs []string
}

// signals is the normalized view of Meta the rule predicates evaluate.
type signals struct {
	domain   string
	devClass string
	typeHint string

	// text is the concatenation of every free-text field, lowercased.
	text string
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (m Meta) signals() signals {
	return signals{
		domain:   normalize(m.Domain),
		devClass: normalize(m.DeviceClass),
		typeHint: normalize(m.TypeHint),
		text: strings.Join([]string{
			normalize(m.Name),
			normalize(m.Label),
			normalize(m.DeviceClass),
			normalize(m.Model),
			normalize(m.Manufacturer),
		}, " "),
	}
}

// rule pairs a predicate with the type it classifies to. Rules are
// evaluated in order; the first match wins.
type rule struct {
	name  string
	match func(s signals) bool
	typ   DeviceType
}

func textMatches(pattern string) func(signals) bool {
	re := regexp.MustCompile(pattern)
	return func(s signals) bool { return re.MatchString(s.text) }
}

func domainIs(domains ...string) func(signals) bool {
	return func(s signals) bool {
		for _, d := range domains {
			if s.domain == d {
				return true
			}
		}
		return false
	}
}

func classIs(classes ...string) func(signals) bool {
	return func(s signals) bool {
		for _, c := range classes {
			if s.devClass == c {
				return true
			}
		}
		return false
	}
}

func anyOf(preds ...func(signals) bool) func(signals) bool {
	return func(s signals) bool {
		for _, p := range preds {
			if p(s) {
				return true
			}
		}
		return false
	}
}

func allOf(preds ...func(signals) bool) func(signals) bool {
	return func(s signals) bool {
		for _, p := range preds {
			if !p(s) {
				return false
			}
		}
		return true
	}
}

// envDomain limits environmental-sensor rules to the generic sensor domains.
var envDomain = domainIs("sensor", "binary_sensor")

// typeRules is the ordered classification table. Earlier rules take
// priority. Extend by inserting rows; call sites never change.
var typeRules = []rule{
	{"climate", anyOf(
		domainIs("climate"),
		classIs("climate", "thermostat"),
		textMatches(`thermostat|radiator`),
	), TypeThermostat},

	{"light", anyOf(
		domainIs("light"),
		func(s signals) bool { return strings.Contains(s.devClass, "light") },
		textMatches(`lamp|bulb|downlight|spotlight|ceiling\s*light`),
	), TypeLight},

	{"fan", anyOf(
		domainIs("fan"),
		func(s signals) bool { return strings.Contains(s.devClass, "fan") },
	), TypeFan},

	{"outlet", anyOf(
		domainIs("switch", "outlet", "plug"),
		func(s signals) bool {
			return strings.Contains(s.devClass, "outlet") || strings.Contains(s.devClass, "socket")
		},
		textMatches(`socket|plug|outlet|power strip`),
	), TypeOutlet},

	{"curtain", allOf(
		anyOf(domainIs("cover"), classIs("cover")),
		textMatches(`curtain`),
	), TypeCurtain},

	{"blind", allOf(
		anyOf(domainIs("cover"), classIs("cover")),
		textMatches(`blind`),
	), TypeBlind},

	{"cover", anyOf(domainIs("cover"), classIs("cover")), TypeCover},

	{"motion", allOf(domainIs("binary_sensor"), anyOf(
		classIs("motion", "occupancy", "presence"),
		textMatches(`motion|occupancy|presence|movement|pir`),
	)), TypeMotionSensor},

	{"contact", allOf(domainIs("binary_sensor"), anyOf(
		classIs("door", "window", "opening"),
		textMatches(`door|window|contact`),
	)), TypeContactSensor},

	{"vibration", allOf(domainIs("binary_sensor"), anyOf(
		classIs("vibration", "tilt"),
		textMatches(`vibration|tilt|shock`),
	)), TypeVibrationSensor},

	{"smoke", allOf(domainIs("binary_sensor"), anyOf(
		classIs("smoke"),
		textMatches(`smoke|fire detector`),
	)), TypeSmokeSensor},

	{"gas", allOf(domainIs("binary_sensor"), anyOf(
		classIs("gas"),
		textMatches(`gas|co detector|co\s?2 detector`),
	)), TypeGasSensor},

	{"water-leak", allOf(domainIs("binary_sensor"), anyOf(
		classIs("moisture"),
		textMatches(`water leak|leakage|flood sensor`),
	)), TypeWaterLeakSensor},

	{"temperature", allOf(envDomain, anyOf(
		classIs("temperature"),
		textMatches(`temperature|\btemp\b`),
	)), TypeTemperatureSensor},

	{"humidity", allOf(envDomain, anyOf(
		classIs("humidity"),
		textMatches(`humidity|\brh\b`),
	)), TypeHumiditySensor},

	{"pressure", allOf(envDomain, anyOf(
		classIs("pressure"),
		textMatches(`pressure|barometer`),
	)), TypePressureSensor},

	{"illuminance", allOf(envDomain, anyOf(
		classIs("illuminance"),
		textMatches(`illuminance|\blux\b`),
	)), TypeIlluminanceSensor},

	{"uv", allOf(envDomain, anyOf(classIs("uv"), textMatches(`\buv\b`))), TypeUVSensor},

	{"co2", allOf(envDomain, anyOf(classIs("co2"), textMatches(`\bco2\b`))), TypeCO2Sensor},

	{"voc", allOf(envDomain, anyOf(classIs("voc"), textMatches(`\bvoc\b|tvoc`))), TypeVOCSensor},

	{"pm25", allOf(envDomain, textMatches(`pm ?2\.?5`)), TypePM25Sensor},

	{"pm10", allOf(envDomain, textMatches(`pm ?10`)), TypePM10Sensor},

	{"air-quality", allOf(envDomain, anyOf(
		classIs("aqi"),
		textMatches(`air quality|aqi`),
	)), TypeAirQualitySensor},

	{"power", allOf(powerCapable, anyOf(classIs("power"), textMatches(`\bpower\b|\bwatt\b`))), TypePowerSensor},

	{"energy", allOf(powerCapable, anyOf(classIs("energy"), textMatches(`energy|kwh`))), TypeEnergySensor},

	{"voltage", allOf(powerCapable, anyOf(classIs("voltage"), textMatches(`voltage|\bvolt\b`))), TypeVoltageSensor},

	{"current", allOf(powerCapable, anyOf(classIs("current"), textMatches(`current|\bamp\b`))), TypeCurrentSensor},

	{"battery", allOf(powerCapable, anyOf(classIs("battery"), textMatches(`battery|akku`))), TypeBatterySensor},

	// TRV radiator valves report themselves under generic model ids.
	{"trv-models", func(s signals) bool {
		return strings.Contains(s.text, "_tze204_") ||
			strings.Contains(s.text, "ts0601") ||
			strings.Contains(s.typeHint, "thermostat")
	}, TypeThermostat},

	{"coordinator", func(s signals) bool {
		return s.domain == "coordinator" || s.typeHint == "coordinator"
	}, TypeCoordinator},

	{"bridge", domainIs("bridge"), TypeBridge},
	{"gateway", domainIs("gateway"), TypeGateway},

	{"generic-sensor", envDomain, TypeSensor},
}

// powerCapable covers domains that commonly expose electrical channels.
var powerCapable = anyOf(envDomain, domainIs("switch", "outlet", "plug"))

// InferType maps device metadata to a canonical type. It is pure and
// total: any input, including the zero Meta, yields a member of the
// closed type set.
func InferType(meta Meta) DeviceType {
	s := meta.signals()
	for _, r := range typeRules {
		if r.match(s) {
			return r.typ
		}
	}
	return TypeSensor
}

// InferDomain determines the coarse control domain for a device.
//
// Precedence: an explicit domain wins; then the native domain prefixes of
// the device's entity ids; then the domain implied by the inferred type;
// finally a cautious name-based guess. The zero Meta yields "sensor".
func InferDomain(meta Meta) string {
	if d := normalize(meta.Domain); d != "" {
		return d
	}

	entityDomains := make(map[string]bool)
	for _, id := range meta.EntityIDs {
		if dom, _, ok := strings.Cut(normalize(id), "."); ok && dom != "" {
			entityDomains[dom] = true
		}
	}
	for _, dom := range []string{"climate", "light", "fan", "cover", "switch"} {
		if entityDomains[dom] {
			return dom
		}
	}
	if entityDomains["sensor"] || entityDomains["binary_sensor"] {
		return "sensor"
	}

	switch InferType(meta) {
	case TypeThermostat:
		return "climate"
	case TypeLight:
		return "light"
	case TypeOutlet:
		// Zigbee plugs typically live in the switch domain upstream.
		return "switch"
	case TypeFan:
		return "fan"
	}

	sig := normalize(meta.Label) + " " + normalize(meta.Name) + " " + normalize(meta.TypeHint)
	switch {
	case strings.Contains(sig, "thermostat") || strings.Contains(sig, "radiator"):
		return "climate"
	case strings.Contains(sig, "light") || strings.Contains(sig, "bulb") || strings.Contains(sig, "lamp"):
		return "light"
	case strings.Contains(sig, "socket") || strings.Contains(sig, "plug") || strings.Contains(sig, "outlet"):
		return "switch"
	}

	return "sensor"
}
