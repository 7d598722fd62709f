package service

import (
	"context"

	"cellar_monitor/internal/logger"
	"cellar_monitor/internal/models"
	"cellar_monitor/internal/repository"
)

// Monitoring exposes read-only dashboard snapshots.
type Monitoring interface {
	Snapshot() models.Dashboard
	Sensor(kind models.SensorKind) (models.SensorView, bool)
	Banner() models.BannerView
}

// EventLog exposes the alert journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.AlertEvent, error)
}

// Poller runs the background poll/rotate loop.
// Stop via context cancellation in main() for graceful shutdown.
type Poller interface {
	Run(ctx context.Context) error
}

// Service aggregates all sub-services.
type Service struct {
	Monitoring
	EventLog
	Poller
}

// NewService wires the repository layer and a history source into concrete services.
func NewService(repos *repository.Repository, fetcher HistoryFetcher, opts MonitorOptions, log *logger.Logger) *Service {
	monitor := NewMonitorService(fetcher, repos.EventRepo, opts, log)
	return &Service{
		Monitoring: monitor,
		EventLog:   NewEventLogService(repos.EventRepo),
		Poller:     monitor,
	}
}
