package stream

import (
	"strings"

	"cellar_monitor/internal/models"
)

const (
	// AlertMarker prefixes every alert message.
	AlertMarker = "⚠️"
	// AllNormalMessage is the only message when nothing is out of band.
	AllNormalMessage = "✅ Sistema Operando Normalmente - Todos os sensores dentro dos parâmetros ideais"
	// PlaceholderMessage fills the banner before the first evaluation.
	PlaceholderMessage = "—"
)

// PlaceholderBanner is the banner shown while awaiting data.
func PlaceholderBanner() models.BannerState {
	return models.BannerState{Messages: []string{PlaceholderMessage}}
}

// Rebuild collects the alert messages of statuses in fixed sensor order,
// falling back to AllNormalMessage. The active index restarts at 0.
func Rebuild(statuses []models.SensorStatus) models.BannerState {
	byKind := make(map[models.SensorKind]models.SensorStatus, len(statuses))
	for _, st := range statuses {
		byKind[st.Kind] = st
	}

	var msgs []string
	for _, k := range models.SensorKinds {
		if st, ok := byKind[k]; ok && st.HasAlert() {
			msgs = append(msgs, st.Alert)
		}
	}
	if len(msgs) == 0 {
		msgs = []string{AllNormalMessage}
	}
	return models.BannerState{Messages: msgs}
}

// Rotate advances the active index, wrapping at the end.
func Rotate(b models.BannerState) models.BannerState {
	if len(b.Messages) == 0 {
		return PlaceholderBanner()
	}
	b.ActiveIndex = (b.ActiveIndex + 1) % len(b.Messages)
	return b
}

// IsAlert reports whether msg is an alert rather than an informational line.
func IsAlert(msg string) bool {
	return strings.Contains(msg, AlertMarker)
}
