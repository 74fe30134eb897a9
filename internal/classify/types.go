package classify

// DeviceType is the canonical closed set of device types. Every
// classification result is a member of this set.
type DeviceType string

// Canonical device types.
const (
	TypeLight      DeviceType = "light"
	TypeSwitch     DeviceType = "switch"
	TypeOutlet     DeviceType = "outlet"
	TypePlug       DeviceType = "plug"
	TypeFan        DeviceType = "fan"
	TypeThermostat DeviceType = "thermostat"

	TypeAirConditioner DeviceType = "air_conditioner"
	TypeHeater         DeviceType = "heater"
	TypeHumidifier     DeviceType = "humidifier"
	TypeDehumidifier   DeviceType = "dehumidifier"

	TypeDoorLock   DeviceType = "door_lock"
	TypeValve      DeviceType = "valve"
	TypeSiren      DeviceType = "siren"
	TypeGarageDoor DeviceType = "garage_door"
	TypeCover      DeviceType = "cover"
	TypeCurtain    DeviceType = "curtain"
	TypeBlind      DeviceType = "blind"

	TypeCamera      DeviceType = "camera"
	TypeTV          DeviceType = "tv"
	TypeSpeaker     DeviceType = "speaker"
	TypeMediaPlayer DeviceType = "media_player"
	TypeRemote      DeviceType = "remote"
	TypeButton      DeviceType = "button"

	TypeMotionSensor    DeviceType = "motion_sensor"
	TypeOccupancySensor DeviceType = "occupancy_sensor"
	TypePresenceSensor  DeviceType = "presence_sensor"
	TypeContactSensor   DeviceType = "contact_sensor"
	TypeVibrationSensor DeviceType = "vibration_sensor"
	TypeTiltSensor      DeviceType = "tilt_sensor"

	TypeSmokeSensor     DeviceType = "smoke_sensor"
	TypeGasSensor       DeviceType = "gas_sensor"
	TypeWaterLeakSensor DeviceType = "water_leak_sensor"
	TypeSoundSensor     DeviceType = "sound_sensor"

	TypeTemperatureSensor DeviceType = "temperature_sensor"
	TypeHumiditySensor    DeviceType = "humidity_sensor"
	TypePressureSensor    DeviceType = "pressure_sensor"
	TypeIlluminanceSensor DeviceType = "illuminance_sensor"
	TypeUVSensor          DeviceType = "uv_sensor"
	TypeCO2Sensor         DeviceType = "co2_sensor"
	TypeVOCSensor         DeviceType = "voc_sensor"
	TypePM25Sensor        DeviceType = "pm25_sensor"
	TypePM10Sensor        DeviceType = "pm10_sensor"
	TypeWindSensor        DeviceType = "wind_sensor"
	TypeRainSensor        DeviceType = "rain_sensor"
	TypeAirQualitySensor  DeviceType = "air_quality_sensor"

	TypePowerSensor   DeviceType = "power_sensor"
	TypeEnergySensor  DeviceType = "energy_sensor"
	TypeVoltageSensor DeviceType = "voltage_sensor"
	TypeCurrentSensor DeviceType = "current_sensor"
	TypeBatterySensor DeviceType = "battery_sensor"

	TypeBinarySensor DeviceType = "binary_sensor"
	TypeSensor       DeviceType = "sensor"

	TypeCoordinator DeviceType = "coordinator"
	TypeBridge      DeviceType = "bridge"
	TypeGateway     DeviceType = "gateway"
)

// allowedTypes is the membership set for the closed DeviceType space.
var allowedTypes = map[DeviceType]bool{
	TypeLight: true, TypeSwitch: true, TypeOutlet: true, TypePlug: true, TypeFan: true,
	TypeThermostat: true, TypeAirConditioner: true, TypeHeater: true,
	TypeHumidifier: true, TypeDehumidifier: true,
	TypeDoorLock: true, TypeValve: true, TypeSiren: true, TypeGarageDoor: true,
	TypeCover: true, TypeCurtain: true, TypeBlind: true,
	TypeCamera: true, TypeTV: true, TypeSpeaker: true, TypeMediaPlayer: true,
	TypeRemote: true, TypeButton: true,
	TypeMotionSensor: true, TypeOccupancySensor: true, TypePresenceSensor: true,
	TypeContactSensor: true, TypeVibrationSensor: true, TypeTiltSensor: true,
	TypeSmokeSensor: true, TypeGasSensor: true, TypeWaterLeakSensor: true, TypeSoundSensor: true,
	TypeTemperatureSensor: true, TypeHumiditySensor: true, TypePressureSensor: true,
	TypeIlluminanceSensor: true, TypeUVSensor: true, TypeCO2Sensor: true, TypeVOCSensor: true,
	TypePM25Sensor: true, TypePM10Sensor: true, TypeWindSensor: true, TypeRainSensor: true,
	TypeAirQualitySensor: true,
	TypePowerSensor:      true, TypeEnergySensor: true, TypeVoltageSensor: true,
	TypeCurrentSensor: true, TypeBatterySensor: true,
	TypeBinarySensor: true, TypeSensor: true,
	TypeCoordinator: true, TypeBridge: true, TypeGateway: true,
}

// IsAllowed reports whether t is a member of the canonical type set.
func IsAllowed(t DeviceType) bool {
	return allowedTypes[t]
}

// Coerce maps an arbitrary string to a member of the canonical type set.
// Known values pass through; everything else becomes TypeSensor.
func Coerce(input string) DeviceType {
	t := DeviceType(normalize(input))
	if allowedTypes[t] {
		return t
	}
	return TypeSensor
}
