package models

import "strings"

// SensorKind names one of the monitored environmental streams.
type SensorKind string

const (
	Temperature SensorKind = "temperature"
	Humidity    SensorKind = "humidity"
	Luminosity  SensorKind = "luminosity"
)

// SensorKinds is the fixed display and alert order.
var SensorKinds = []SensorKind{Temperature, Humidity, Luminosity}

// ParseSensorKind reports whether s names a known sensor kind.
func ParseSensorKind(s string) (SensorKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range SensorKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// ThresholdBand is the [Min, Max] range considered normal.
type ThresholdBand struct {
	Min float64 `json:"min" mapstructure:"min"`
	Max float64 `json:"max" mapstructure:"max"`
}

// StatusLevel classifies the latest value against its band.
type StatusLevel string

const (
	LevelUnknown StatusLevel = "UNKNOWN" // no data yet
	LevelLow     StatusLevel = "LOW"
	LevelNormal  StatusLevel = "NORMAL"
	LevelHigh    StatusLevel = "HIGH"
)

// SensorStatus is derived each cycle from the last sample of a series.
type SensorStatus struct {
	Kind  SensorKind  `json:"kind"`
	Level StatusLevel `json:"level"`
	Label string      `json:"label"`
	Alert string      `json:"alert,omitempty"` // empty when in band
}

// HasAlert reports whether the status carries an alert message.
func (s SensorStatus) HasAlert() bool { return s.Alert != "" }
