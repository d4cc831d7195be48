// Camera Server - multi-camera frame scheduling service
//
// This is the main entry point for the camera server. It owns a bounded
// registry of video-capture sources and a single frame worker that asks
// each registered camera for a frame, round-robin, for the life of the
// process. Around that core it wires:
//   - a SQLite fault journal
//   - MQTT commands and retained camera state
//   - InfluxDB fault and scheduler metrics
//   - a REST API for lookup and control
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-camserver/migrations"

	"github.com/nerrad567/gray-logic-camserver/internal/api"
	"github.com/nerrad567/gray-logic-camserver/internal/camera"
	"github.com/nerrad567/gray-logic-camserver/internal/control"
	"github.com/nerrad567/gray-logic-camserver/internal/faults"
	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-camserver/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when CAMSERVER_CONFIG is unset. If it does
	// not exist the built-in defaults are used.
	defaultConfigPath = "configs/config.yaml"

	// schedulerStopTimeout bounds the wait for the frame worker's current pass.
	schedulerStopTimeout = 10 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown after ctx is cancelled.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence with matching teardown
	log := logging.Default()
	log.Info("starting camera server",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Fault journal
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", db.Path(), "persist", cfg.Faults.Persist)
	faultRepo := faults.NewSQLiteRepository(db.DB)

	checks := map[string]api.HealthChecker{"database": db}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log.Component("mqtt"))
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Fault reporter
	reporter := faults.NewReporter(buildReporterConfig(cfg, faultRepo, mqttClient, influxClient))
	reporter.SetLogger(log.Component("faults"))
	reporter.Start(ctx)
	defer reporter.Stop()

	// Control plane
	var plane *control.Plane
	if mqttClient != nil {
		plane = control.New(mqttClient, control.Config{QoS: mqttClient.QoS()})
		plane.SetLogger(log.Component("control"))
	}

	// Camera server
	opts := []camera.Option{
		camera.WithLogger(log.Component("camera")),
		camera.WithFaultHandler(reporter.Handle),
	}
	if plane != nil {
		opts = append(opts, camera.WithStateListener(plane.Notify))
	}
	srv, err := camera.New(camera.Config{
		Capacity: cfg.Camera.Capacity,
		Scheduler: camera.SchedulerConfig{
			Name:         cfg.Camera.WorkerName,
			Backoff:      cfg.Backoff(),
			SkipDisabled: cfg.Camera.SkipDisabled,
		},
	}, opts...)
	if err != nil {
		return fmt.Errorf("creating camera server: %w", err)
	}

	if err := registerDevices(srv, cfg.Camera.Devices); err != nil {
		return err
	}
	log.Info("cameras registered", "count", srv.Len(), "capacity", srv.Capacity())

	if plane != nil {
		if err := plane.Start(ctx, srv); err != nil {
			return fmt.Errorf("starting control plane: %w", err)
		}
		defer plane.Stop()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
			plane.PublishAll()
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	}

	// Scheduler stats
	if stats := buildStatsWriter(cfg, srv, reporter, mqttClient, influxClient); stats != nil {
		stats.SetLogger(log.Component("stats"))
		stats.Start(ctx)
		defer stats.Stop()
	}

	// REST API
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			Cameras:  srv,
			Faults:   faultRepo,
			Reporter: reporter,
			Checks:   checks,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	// Frame worker
	if err := srv.StartScheduler(ctx); err != nil {
		return fmt.Errorf("starting frame scheduler: %w", err)
	}
	log.Info("camera server started", "worker", cfg.Camera.WorkerName)

	<-ctx.Done()
	log.Info("shutdown signal received, stopping...")

	stopCtx, cancel := context.WithTimeout(context.Background(), schedulerStopTimeout)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		log.Error("frame scheduler did not stop in time", "error", err)
	}

	stats := srv.SchedulerStats()
	log.Info("camera server stopped",
		"passes", stats.Passes,
		"frames", stats.Frames,
		"faults", stats.Faults,
	)
	return nil
}

// loadConfig reads the config file, falling back to built-in defaults when
// the default path does not exist.
func loadConfig(log *logging.Logger) (*config.Config, error) {
	path := getConfigPath()
	cfg, err := config.Load(path)
	if err == nil {
		log.Info("configuration loaded", "path", path)
		return cfg, nil
	}
	if path != defaultConfigPath || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg, err = config.Default()
	if err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}
	log.Info("no config file, using defaults", "path", path)
	return cfg, nil
}

// getConfigPath returns the configuration file path.
// Uses CAMSERVER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CAMSERVER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openDatabase opens and migrates the fault journal. With persistence
// disabled the journal lives in memory.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	dbCfg := database.Config{Path: database.MemoryPath, BusyTimeout: cfg.Database.BusyTimeout}
	if cfg.Faults.Persist {
		dbCfg = database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		}
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// buildReporterConfig assigns only the sinks that exist, so a nil client
// never ends up inside a non-nil interface.
func buildReporterConfig(cfg *config.Config, repo faults.Repository, mqttClient *mqtt.Client, influxClient *influxdb.Client) faults.ReporterConfig {
	rc := faults.ReporterConfig{
		QueueSize:  cfg.Faults.QueueSize,
		Retention:  cfg.Retention(),
		Repository: repo,
	}
	if mqttClient != nil && cfg.Faults.Publish {
		rc.Publisher = mqttClient
	}
	if influxClient != nil {
		rc.Points = influxClient
	}
	return rc
}

// buildStatsWriter returns nil when there is nowhere to write samples.
func buildStatsWriter(cfg *config.Config, srv *camera.Server, reporter *faults.Reporter, mqttClient *mqtt.Client, influxClient *influxdb.Client) *faults.StatsWriter {
	if mqttClient == nil && influxClient == nil {
		return nil
	}
	sc := faults.StatsWriterConfig{
		Interval: cfg.StatsInterval(),
		Source:   srv,
		Reporter: reporter,
	}
	if mqttClient != nil {
		sc.Publisher = mqttClient
	}
	if influxClient != nil {
		sc.Points = influxClient
	}
	return faults.NewStatsWriter(sc)
}

// registerDevices registers the configured cameras in order. Configured
// cameras have no capture pipeline attached, so each gets a StubSource.
func registerDevices(srv *camera.Server, devices []config.CameraDeviceConfig) error {
	for _, d := range devices {
		var opts []camera.RegisterOption
		if !d.IsEnabled() {
			opts = append(opts, camera.StartDisabled())
		}
		if err := srv.Register(d.ID, d.Name, d.Width, d.Height, d.FPS, camera.NewStubSource(d.Name), opts...); err != nil {
			return fmt.Errorf("registering camera %q: %w", d.Name, err)
		}
	}
	return nil
}
