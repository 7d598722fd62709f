package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"cellar_monitor/internal/models"
	"cellar_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockMonitoring struct {
	dashboard models.Dashboard
	calls     atomic.Int32
}

func (m *mockMonitoring) Snapshot() models.Dashboard {
	n := m.calls.Add(1)
	d := m.dashboard
	d.Cycles = int(n)
	return d
}

func (m *mockMonitoring) Sensor(kind models.SensorKind) (models.SensorView, bool) {
	for _, v := range m.dashboard.Sensors {
		if v.Kind == kind {
			return v, true
		}
	}
	return models.SensorView{}, false
}

func (m *mockMonitoring) Banner() models.BannerView {
	return m.dashboard.Banner
}

type mockEventLog struct {
	resp     []models.AlertEvent
	err      error
	calls    int
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.AlertEvent, error) {
	m.calls++
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func ptr(v float64) *float64 { return &v }

func sampleDashboard() models.Dashboard {
	return models.Dashboard{
		Ready: true,
		Sensors: []models.SensorView{
			{
				Kind: models.Temperature, Title: "Temperatura", Unit: "°C",
				Value: ptr(19.5), Status: "Temperatura Alta", Level: models.LevelHigh,
				Band:   models.ThresholdBand{Min: 10, Max: 18},
				Points: []models.ChartPoint{{Timestamp: "t1", Label: "t1", Value: ptr(19.5)}},
			},
			{
				Kind: models.Humidity, Title: "Umidade", Unit: "%",
				Value: nil, Status: "Umidade OK", Level: models.LevelNormal,
				Points: []models.ChartPoint{{Timestamp: "t1", Label: "t1", Value: nil}},
			},
			{
				Kind: models.Luminosity, Title: "Luminosidade", Unit: "lx",
				Value: ptr(80), Status: "Luminosidade OK", Level: models.LevelNormal,
			},
		},
		Banner: models.BannerView{
			Messages: []string{"⚠️ Alerta: Temperatura acima do limite seguro para os vinhos!"},
			Active:   "⚠️ Alerta: Temperatura acima do limite seguro para os vinhos!",
			Alert:    true,
		},
	}
}
