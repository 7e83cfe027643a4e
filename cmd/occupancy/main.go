// Gray Logic Occupancy - lab attendance board
//
// This is the main entry point for the occupancy service. It tracks which
// seats in a lab are occupied by combining two signals:
//   - Bluetooth reachability of each seat's registered device (poll loop)
//   - Ambient light reports from a sensor at one designated seat (TCP ingest)
//
// and serves the reconciled table over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-occupancy/migrations"

	"github.com/nerrad567/gray-logic-occupancy/internal/api"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
	"github.com/nerrad567/gray-logic-occupancy/internal/panel"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// options holds parsed command-line flags.
type options struct {
	configPath  string
	showVersion bool
}

func main() {
	// Cancel on Ctrl+C or SIGTERM so every component shuts down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("occupancy %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command-line arguments.
func parseFlags(args []string) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("occupancy", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to config file (default: $OCCUPANCY_CONFIG or "+defaultConfigPath+")")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	opts.configPath = resolveConfigPath(opts.configPath)
	return opts, nil
}

// resolveConfigPath picks the flag value, then OCCUPANCY_CONFIG, then the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("OCCUPANCY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the actual application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context, opts options) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Occupancy",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", opts.configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}

	store := occupancy.NewSQLiteStore(db.DB)
	seeded, err := store.Seed(ctx, seatSeeds(cfg.Seats))
	if err != nil {
		return fmt.Errorf("seeding seats: %w", err)
	}
	log.Info("seats provisioned", "configured", len(cfg.Seats), "inserted", seeded)

	fanout := occupancy.NewFanout(log.Component("sinks"))

	mqttClient, err := connectMQTT(cfg, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		fanout.Add(newMQTTSink(mqttClient, log.Component("mqtt-sink")))
	}

	influxClient, err := connectInfluxDB(cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		fanout.Add(newInfluxSink(influxClient))
	}

	prober := occupancy.NewCommandProber(cfg.Presence.ProbeCommand, cfg.Presence.UseSudo, log.Component("prober"))

	poller := occupancy.NewPoller(store, prober, occupancy.PollerConfig{
		Interval:     cfg.Presence.PollInterval,
		ProbeTimeout: cfg.Presence.ProbeTimeout,
		Concurrency:  cfg.Presence.ProbeConcurrency,
	}, log.Component("poller"))
	poller.SetSink(fanout)

	ingest := occupancy.NewIngestServer(store, prober, occupancy.IngestConfig{
		DesignatedSeat: cfg.Ingest.DesignatedSeat,
		Threshold:      cfg.Ingest.AmbientThreshold,
		ProbeTimeout:   cfg.Presence.ProbeTimeout,
		ReadTimeout:    cfg.Ingest.ReadTimeout,
		MaxPayload:     cfg.Ingest.MaxPayload,
		MaxConnections: cfg.Ingest.MaxConnections,
	}, log.Component("ingest"))
	ingest.SetSink(fanout)

	if listenErr := ingest.Listen(cfg.Ingest.Addr()); listenErr != nil {
		return fmt.Errorf("starting ingest server: %w", listenErr)
	}

	var reports *reportQueue
	if mqttClient != nil && cfg.Ingest.MQTTTopic != "" {
		reports = newReportQueue(ingest, reportQueueSize, log.Component("mqtt-ingest"))
		if subErr := mqttClient.Subscribe(cfg.Ingest.MQTTTopic, byte(cfg.MQTT.QoS), reports.Handle); subErr != nil {
			_ = ingest.Close()
			return fmt.Errorf("subscribing to %s: %w", cfg.Ingest.MQTTTopic, subErr)
		}
		log.Info("accepting sensor reports over MQTT", "topic", cfg.Ingest.MQTTTopic)
	}

	renderer, err := panel.NewRenderer(cfg.Site.Name, nil)
	if err != nil {
		_ = ingest.Close()
		return fmt.Errorf("loading templates: %w", err)
	}

	deps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log.Component("api"),
		Snapshots: occupancy.NewSnapshotService(store),
		Admin:     store,
		Renderer:  renderer,
		Poller:    poller,
		Ingest:    ingest,
		DB:        db,
		StaticDir: cfg.API.StaticDir,
		Version:   version,
	}
	// Optional backends are only set when present; a nil client stored in
	// an interface would not compare equal to nil.
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.InfluxDB = influxClient
	}

	server, err := api.New(deps)
	if err != nil {
		_ = ingest.Close()
		return fmt.Errorf("creating API server: %w", err)
	}
	fanout.Add(server.Hub())

	g, gctx := errgroup.WithContext(ctx)

	if startErr := server.Start(gctx); startErr != nil {
		_ = ingest.Close()
		return fmt.Errorf("starting API server: %w", startErr)
	}

	checks := []namedCheck{{"database", db}, {"api", server}}
	if mqttClient != nil {
		checks = append(checks, namedCheck{"mqtt", mqttClient})
	}
	if influxClient != nil {
		checks = append(checks, namedCheck{"influxdb", influxClient})
	}
	if checkErr := healthCheck(ctx, checks...); checkErr != nil {
		_ = server.Close()
		_ = ingest.Close()
		return fmt.Errorf("health check failed: %w", checkErr)
	}
	log.Info("all health checks passed")

	g.Go(func() error {
		if runErr := poller.Run(gctx); !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		return nil
	})
	g.Go(func() error {
		return ingest.Serve(gctx)
	})
	if reports != nil {
		g.Go(func() error {
			reports.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return server.Close()
	})

	log.Info("initialisation complete",
		"api", server.Addr().String(),
		"ingest", ingest.Addr().String(),
		"designated_seat", cfg.Ingest.DesignatedSeat,
	)

	if waitErr := g.Wait(); waitErr != nil {
		return waitErr
	}

	log.Info("Gray Logic Occupancy stopped")
	return nil
}

// seatSeeds converts configured seats into store seeds.
func seatSeeds(seats []config.SeatSeed) []occupancy.SeatSeed {
	seeds := make([]occupancy.SeatSeed, 0, len(seats))
	for _, s := range seats {
		seeds = append(seeds, occupancy.SeatSeed{Name: s.Name, Address: s.Address})
	}
	return seeds
}

// healthChecker is implemented by every component verified at startup.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// namedCheck pairs a component with the name used in error messages.
type namedCheck struct {
	name    string
	checker healthChecker
}

// healthCheck verifies each component in order and returns the first failure.
func healthCheck(ctx context.Context, checks ...namedCheck) error {
	for _, c := range checks {
		if err := c.checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// connectMQTT connects to the broker when enabled. It returns nil, nil when
// MQTT is disabled.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil, nil
	}

	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

// connectInfluxDB connects to InfluxDB when enabled. It returns nil, nil when
// InfluxDB is disabled.
func connectInfluxDB(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}

	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})

	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}
