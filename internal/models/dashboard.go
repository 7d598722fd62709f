package models

import "time"

// Dashboard is an immutable snapshot handed to the presentation layer.
type Dashboard struct {
	Ready        bool         `json:"ready"` // all three series have data
	Sensors      []SensorView `json:"sensors"`
	Banner       BannerView   `json:"banner"`
	LastUpdated  *time.Time   `json:"last_updated,omitempty"` // nil until the first good cycle
	LastError    string       `json:"last_error,omitempty"`
	Stale        bool         `json:"stale"`
	Cycles       int          `json:"cycles"`
	FailedCycles int          `json:"failed_cycles"`
	GeneratedAt  time.Time    `json:"generated_at"`
}

// SensorView is a card plus its chart series.
type SensorView struct {
	Kind   SensorKind    `json:"kind"`
	Title  string        `json:"title"`
	Unit   string        `json:"unit"`
	Value  *float64      `json:"value"` // nil renders as "--"
	Status string        `json:"status"`
	Level  StatusLevel   `json:"level"`
	Band   ThresholdBand `json:"band"`
	Points []ChartPoint  `json:"points"`
}

// ChartPoint is one plotted sample; Value is nil for unparseable readings.
type ChartPoint struct {
	Timestamp string   `json:"timestamp"`
	Label     string   `json:"label"`
	Value     *float64 `json:"value"`
}

// BannerView is the banner as rendered.
type BannerView struct {
	Messages    []string `json:"messages"`
	ActiveIndex int      `json:"active_index"`
	Active      string   `json:"active"`
	Alert       bool     `json:"alert"`
}
