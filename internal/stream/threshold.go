package stream

import (
	"cellar_monitor/internal/models"
)

// AwaitingLabel is shown on every card until all sensors have data.
const AwaitingLabel = "Aguardando dados"

// Descriptor carries the display copy for one sensor kind.
type Descriptor struct {
	Title     string
	Unit      string
	OKLabel   string
	HighLabel string
	LowLabel  string
	HighAlert string
	LowAlert  string
}

var descriptors = map[models.SensorKind]Descriptor{
	models.Temperature: {
		Title:     "Temperatura",
		Unit:      "°C",
		OKLabel:   "Temperatura OK",
		HighLabel: "Temperatura Alta",
		LowLabel:  "Temperatura Baixa",
		HighAlert: AlertMarker + " Alerta: Temperatura acima do limite seguro para os vinhos!",
		LowAlert:  AlertMarker + " Alerta: Temperatura abaixo do ideal para conservação!",
	},
	models.Humidity: {
		Title:     "Umidade",
		Unit:      "%",
		OKLabel:   "Umidade OK",
		HighLabel: "Umidade Alta",
		LowLabel:  "Umidade Baixa",
		HighAlert: AlertMarker + " Alerta: Umidade elevada pode danificar os rótulos!",
		LowAlert:  AlertMarker + " Alerta: Umidade muito baixa pode ressecar as rolhas!",
	},
	models.Luminosity: {
		Title:     "Luminosidade",
		Unit:      "lx",
		OKLabel:   "Luminosidade OK",
		HighLabel: "Ambiente muito claro",
		LowLabel:  "Ambiente escuro",
		HighAlert: AlertMarker + " Alerta: Luminosidade excessiva pode deteriorar os vinhos!",
		LowAlert:  AlertMarker + " Alerta: Luminosidade insuficiente para monitoramento!",
	},
}

// Describe returns the display copy for kind.
func Describe(kind models.SensorKind) Descriptor {
	if d, ok := descriptors[kind]; ok {
		return d
	}
	return Descriptor{Title: string(kind), OKLabel: string(kind) + " OK"}
}

// Evaluate classifies latest against band. Values above Max are High, below
// Min are Low; anything else, NaN included, is Normal.
func Evaluate(kind models.SensorKind, latest float64, band models.ThresholdBand) models.SensorStatus {
	d := Describe(kind)
	switch {
	case latest > band.Max:
		return models.SensorStatus{Kind: kind, Level: models.LevelHigh, Label: d.HighLabel, Alert: d.HighAlert}
	case latest < band.Min:
		return models.SensorStatus{Kind: kind, Level: models.LevelLow, Label: d.LowLabel, Alert: d.LowAlert}
	default:
		return models.SensorStatus{Kind: kind, Level: models.LevelNormal, Label: d.OKLabel}
	}
}

// Awaiting is the status of a sensor before evaluation has run.
func Awaiting(kind models.SensorKind) models.SensorStatus {
	return models.SensorStatus{Kind: kind, Level: models.LevelUnknown, Label: AwaitingLabel}
}

// EvaluateAll evaluates every sensor kind from store, in fixed order. It
// returns false without evaluating anything unless all series have data.
func EvaluateAll(store *Store, bands map[models.SensorKind]models.ThresholdBand) ([]models.SensorStatus, bool) {
	if !store.Ready() {
		return nil, false
	}
	out := make([]models.SensorStatus, 0, len(models.SensorKinds))
	for _, k := range models.SensorKinds {
		last, _ := store.Latest(k)
		out = append(out, Evaluate(k, last.Value, bands[k]))
	}
	return out, true
}

// StatusesChanged reports whether a and b differ in any level or label.
func StatusesChanged(a, b []models.SensorStatus) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}
