package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "cellar_monitor/docs"
	"cellar_monitor/internal/broker"
	"cellar_monitor/internal/config"
	"cellar_monitor/internal/handlers"
	"cellar_monitor/internal/logger"
	"cellar_monitor/internal/repository"
	"cellar_monitor/internal/repository/db"
	"cellar_monitor/internal/server"
	"cellar_monitor/internal/service"
)

// @title        Cellar Monitor API
// @version      1.0
// @description  Temperature, humidity and luminosity dashboard fed by an STH-Comet broker.
// @BasePath     /
func main() {
	// load configs/config.yml (defaults when absent)
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.InfoLevel, logger.FormatConsole).Fatalw("error reading config", "err", err)
	}

	log := logger.Get(cfg.Log.Level, cfg.Log.Format)

	// open journal
	conn, err := openDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(conn)
	services := service.NewService(repos, newFetcher(cfg, log), monitorOptions(cfg), log)
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start poll/banner loop
	go func() {
		if err := services.Poller.Run(ctx); err != nil {
			log.Errorw("monitor_exited", "err", err)
		}
	}()

	// start HTTP server
	srv := server.New(server.Timeouts{
		ReadHeader: cfg.Server.ReadHeaderTimeout,
		Write:      cfg.Server.WriteTimeout,
		Idle:       cfg.Server.IdleTimeout,
	}, log)
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, cfg, log)
}

// openDB initializes the SQLite journal using configuration.
func openDB(cfg config.Config, log *logger.Logger) (*sql.DB, error) {
	path := cfg.DB.Path
	if path == "" {
		log.Infow("db.path not set in config; using in-memory journal")
		path = db.MemoryPath
	}
	return db.InitDB(path)
}

// newFetcher picks the broker client or the local simulator.
func newFetcher(cfg config.Config, log *logger.Logger) service.HistoryFetcher {
	if cfg.Broker.Simulate {
		log.Infow("broker_simulated", "seed", cfg.Broker.Seed)
		return service.NewSimulatorService(cfg.Attributes(), cfg.Bands(), cfg.Broker.LastN, cfg.Broker.Seed)
	}
	log.Infow("broker_configured", "base_url", cfg.Broker.BaseURL, "entity_id", cfg.Broker.EntityID)
	return broker.NewClient(broker.Config{
		BaseURL:     cfg.Broker.BaseURL,
		Service:     cfg.Broker.Service,
		ServicePath: cfg.Broker.ServicePath,
		EntityType:  cfg.Broker.EntityType,
		EntityID:    cfg.Broker.EntityID,
		LastN:       cfg.Broker.LastN,
		Timeout:     cfg.Broker.Timeout,
	}, nil)
}

func monitorOptions(cfg config.Config) service.MonitorOptions {
	return service.MonitorOptions{
		Attributes:     cfg.Attributes(),
		Bands:          cfg.Bands(),
		MaxPoints:      cfg.Window.MaxPoints,
		PollInterval:   cfg.Poll.Interval,
		BannerInterval: cfg.Banner.Interval,
		StaleAfter:     cfg.Poll.StaleAfter,
		Location:       cfg.Location(),
		TimeFormat:     cfg.Display.TimeFormat,
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, cfg config.Config, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop poller and banner rotation
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
