// Command drivestats samples racing-sim telemetry, keeps cross-session driver
// statistics in SQLite and archives car setups captured on track.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/drivestats/internal/config"
	"github.com/sweeney/drivestats/internal/gpio"
	"github.com/sweeney/drivestats/internal/logic"
	"github.com/sweeney/drivestats/internal/mqtt"
	"github.com/sweeney/drivestats/internal/setupfile"
	"github.com/sweeney/drivestats/internal/status"
	"github.com/sweeney/drivestats/internal/store"
	"github.com/sweeney/drivestats/internal/telemetry"
	"github.com/sweeney/drivestats/internal/web"
)

const (
	defaultIdleInterval   = time.Second
	defaultActiveInterval = 200 * time.Millisecond
	defaultReadTimeout    = telemetry.DefaultReadTimeout
	defaultClassification = string(logic.ClassifyVehicle)
	defaultIdentifier     = "LMU"
	defaultSource         = sourceMQTT
	defaultBroker         = "tcp://localhost:1883"
	defaultHeartbeat      = 15 * time.Minute
	defaultClientID       = "drivestats"
	defaultHTTPAddr       = ":8080"
	defaultGPIOChip       = "gpiochip0"
	defaultPauseMode      = string(gpio.ModeLevel)

	// telemetryStaleAfter is how old a bridged frame may get before the
	// MQTT source stops reporting it.
	telemetryStaleAfter = 5 * time.Second
)

const (
	sourceMQTT   = "mqtt"
	sourceReplay = "replay"
)

var (
	configPath string
	dbPath     string

	runIdleInterval   time.Duration
	runActiveInterval time.Duration
	runReadTimeout    time.Duration
	runClassification string
	runPodiumByClass  bool
	runSetupEnabled   bool
	runSetupDir       string
	runIdentifier     string
	runSetupExt       string
	runSource         string
	runReplayPath     string
	runTopic          string
	runSourceBroker   string
	runBroker         string
	runHeartbeat      time.Duration
	runClientID       string
	runHTTPAddr       string
	runGPIOChip       string
	runPausePin       int
	runPauseMode      string
	runBrandsFile     string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "drivestats",
		Short:        "Driver statistics and setup capture for sim racing",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "statistics database path")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newSetupExportCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample telemetry and record statistics until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runDaemonCmd,
	}
	f := cmd.Flags()
	f.DurationVar(&runIdleInterval, "idle-interval", defaultIdleInterval, "polling interval while not tracking")
	f.DurationVar(&runActiveInterval, "active-interval", defaultActiveInterval, "polling interval while tracking")
	f.DurationVar(&runReadTimeout, "read-timeout", defaultReadTimeout, "timeout for a single telemetry read")
	f.StringVar(&runClassification, "classification", defaultClassification, `stats key: "Vehicle", "Class" or "Class - Brand"`)
	f.BoolVar(&runPodiumByClass, "podium-by-class", false, "count wins and podiums within the vehicle class")
	f.BoolVar(&runSetupEnabled, "setup", true, "capture car setups")
	f.StringVar(&runSetupDir, "setup-dir", config.DefaultSetupDir(), "directory for captured setups")
	f.StringVar(&runIdentifier, "identifier", defaultIdentifier, "prefix for setup file names")
	f.StringVar(&runSetupExt, "setup-ext", setupfile.DefaultExt, "setup file extension")
	f.StringVar(&runSource, "source", defaultSource, `telemetry source: "mqtt" or "replay"`)
	f.StringVar(&runReplayPath, "replay", "", "recorded telemetry (JSON lines) for --source=replay")
	f.StringVar(&runTopic, "telemetry-topic", telemetry.DefaultTopic, "MQTT topic carrying telemetry frames")
	f.StringVar(&runSourceBroker, "telemetry-broker", "", "MQTT broker for telemetry (default: --broker)")
	f.StringVar(&runBroker, "broker", defaultBroker, "MQTT broker for events (empty to disable)")
	f.DurationVar(&runHeartbeat, "heartbeat", defaultHeartbeat, "heartbeat interval (0 to disable)")
	f.StringVar(&runClientID, "client-id", defaultClientID, "MQTT client id")
	f.StringVar(&runHTTPAddr, "http", defaultHTTPAddr, "HTTP status address (empty to disable)")
	f.StringVar(&runGPIOChip, "gpio-chip", defaultGPIOChip, "GPIO chip for the pause switch")
	f.IntVar(&runPausePin, "pause-pin", 0, "BCM pin of the pause switch (0 to disable)")
	f.StringVar(&runPauseMode, "pause-mode", defaultPauseMode, `pause switch behaviour: "level" or "toggle"`)
	f.StringVar(&runBrandsFile, "brands", config.DefaultBrandsPath(), "YAML map of vehicle name to brand")
	return cmd
}

// runOptions is the resolved configuration of the run command.
type runOptions struct {
	IdleInterval   time.Duration
	ActiveInterval time.Duration
	ReadTimeout    time.Duration
	Classification logic.ClassificationMode
	PodiumByClass  bool
	SetupEnabled   bool
	SetupDir       string
	Identifier     string
	SetupExt       string
	Source         string
	ReplayPath     string
	Topic          string
	SourceBroker   string
	Broker         string
	Heartbeat      time.Duration
	ClientID       string
	HTTPAddr       string
	GPIOChip       string
	PausePin       int
	PauseMode      gpio.Mode
	DBPath         string
	BrandsFile     string
}

func runDaemonCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	opts, err := resolveRunOptions(cmd, fileCfg)
	if err != nil {
		return err
	}
	return run(opts)
}

// resolveRunOptions applies config file values to every flag the user did
// not set on the command line.
func resolveRunOptions(cmd *cobra.Command, fileCfg config.FileConfig) (runOptions, error) {
	for _, d := range []struct {
		name   string
		target *time.Duration
		value  *string
	}{
		{"idle-interval", &runIdleInterval, fileCfg.Poll.IdleInterval},
		{"active-interval", &runActiveInterval, fileCfg.Poll.ActiveInterval},
		{"read-timeout", &runReadTimeout, fileCfg.Poll.ReadTimeout},
		{"heartbeat", &runHeartbeat, fileCfg.MQTT.Heartbeat},
	} {
		if err := applyDurationConfig(cmd, d.name, d.target, d.value); err != nil {
			return runOptions{}, err
		}
	}
	applyStringConfig(cmd, "classification", &runClassification, fileCfg.Stats.Classification)
	applyBoolConfig(cmd, "podium-by-class", &runPodiumByClass, fileCfg.Stats.PodiumByClass)
	applyStringConfig(cmd, "db", &dbPath, fileCfg.Stats.DB)
	applyBoolConfig(cmd, "setup", &runSetupEnabled, fileCfg.Setup.Enabled)
	applyStringConfig(cmd, "setup-dir", &runSetupDir, fileCfg.Setup.Dir)
	applyStringConfig(cmd, "identifier", &runIdentifier, fileCfg.Setup.Identifier)
	applyStringConfig(cmd, "setup-ext", &runSetupExt, fileCfg.Setup.Ext)
	applyStringConfig(cmd, "source", &runSource, fileCfg.Source.Kind)
	applyStringConfig(cmd, "replay", &runReplayPath, fileCfg.Source.Path)
	applyStringConfig(cmd, "telemetry-topic", &runTopic, fileCfg.Source.Topic)
	applyStringConfig(cmd, "telemetry-broker", &runSourceBroker, fileCfg.Source.Broker)
	applyStringConfig(cmd, "broker", &runBroker, fileCfg.MQTT.Broker)
	applyStringConfig(cmd, "client-id", &runClientID, fileCfg.MQTT.ClientID)
	applyStringConfig(cmd, "http", &runHTTPAddr, fileCfg.HTTP.Addr)
	applyStringConfig(cmd, "gpio-chip", &runGPIOChip, fileCfg.GPIO.Chip)
	applyIntConfig(cmd, "pause-pin", &runPausePin, fileCfg.GPIO.PausePin)
	applyStringConfig(cmd, "pause-mode", &runPauseMode, fileCfg.GPIO.Mode)
	applyStringConfig(cmd, "brands", &runBrandsFile, fileCfg.BrandsFile)

	opts := runOptions{
		IdleInterval:   runIdleInterval,
		ActiveInterval: runActiveInterval,
		ReadTimeout:    runReadTimeout,
		Classification: logic.ParseClassificationMode(runClassification),
		PodiumByClass:  runPodiumByClass,
		SetupEnabled:   runSetupEnabled,
		SetupDir:       runSetupDir,
		Identifier:     runIdentifier,
		SetupExt:       runSetupExt,
		Source:         runSource,
		ReplayPath:     runReplayPath,
		Topic:          runTopic,
		SourceBroker:   runSourceBroker,
		Broker:         runBroker,
		Heartbeat:      runHeartbeat,
		ClientID:       runClientID,
		HTTPAddr:       runHTTPAddr,
		GPIOChip:       runGPIOChip,
		PausePin:       runPausePin,
		PauseMode:      gpio.Mode(runPauseMode),
		DBPath:         dbPath,
		BrandsFile:     runBrandsFile,
	}
	if opts.SourceBroker == "" {
		opts.SourceBroker = opts.Broker
	}
	if err := validateRunOptions(opts); err != nil {
		return runOptions{}, err
	}
	return opts, nil
}

func validateRunOptions(opts runOptions) error {
	if opts.IdleInterval <= 0 {
		return fmt.Errorf("--idle-interval must be > 0")
	}
	if opts.ActiveInterval <= 0 {
		return fmt.Errorf("--active-interval must be > 0")
	}
	if opts.ReadTimeout <= 0 {
		return fmt.Errorf("--read-timeout must be > 0")
	}
	if opts.Heartbeat < 0 {
		return fmt.Errorf("--heartbeat must be >= 0")
	}
	switch opts.Source {
	case sourceReplay:
		if opts.ReplayPath == "" {
			return fmt.Errorf("--replay is required with --source=replay")
		}
	case sourceMQTT:
		if opts.SourceBroker == "" {
			return fmt.Errorf("--source=mqtt needs --telemetry-broker or --broker")
		}
	default:
		return fmt.Errorf("unknown --source %q", opts.Source)
	}
	if opts.SetupEnabled && opts.SetupDir == "" {
		return fmt.Errorf("--setup-dir must not be empty")
	}
	switch opts.PauseMode {
	case gpio.ModeLevel, gpio.ModeToggle:
	default:
		return fmt.Errorf("unknown --pause-mode %q", opts.PauseMode)
	}
	return nil
}

func run(opts runOptions) error {
	brands, err := config.LoadBrands(opts.BrandsFile)
	if err != nil {
		return fmt.Errorf("load brands: %w", err)
	}

	st, err := store.OpenSQLite(opts.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	src, err := openSource(opts)
	if err != nil {
		return fmt.Errorf("open telemetry: %w", err)
	}
	defer src.Close()

	var sink setupfile.Sink
	if opts.SetupEnabled {
		dir, err := setupfile.NewDirSink(opts.SetupDir)
		if err != nil {
			return err
		}
		dir.Ext = opts.SetupExt
		sink = dir
	}

	var pause *gpio.PauseSwitch
	if opts.PausePin > 0 {
		reader, err := gpio.NewRealReader(opts.GPIOChip, opts.PausePin)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		pause = gpio.NewPauseSwitch(reader, opts.PauseMode)
		defer pause.Close()
	}

	var publisher mqtt.Publisher = nopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if opts.Broker != "" {
		pub, err := mqtt.NewRealPublisher(opts.Broker, opts.ClientID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer pub.Close()
		publisher, mqttStatus = pub, pub
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		IdleIntervalMs:   opts.IdleInterval.Milliseconds(),
		ActiveIntervalMs: opts.ActiveInterval.Milliseconds(),
		HeartbeatMs:      opts.Heartbeat.Milliseconds(),
		Classification:   string(opts.Classification),
		PodiumByClass:    opts.PodiumByClass,
		SetupEnabled:     opts.SetupEnabled,
		SetupDir:         opts.SetupDir,
		Source:           opts.Source,
		DBPath:           opts.DBPath,
		Broker:           opts.Broker,
		HTTPAddr:         opts.HTTPAddr,
	})
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else if opts.Broker != "" {
		log.Printf("published startup event")
	}

	if opts.HTTPAddr != "" {
		srv := web.New(opts.HTTPAddr, tracker, st)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.HTTPAddr)
	}

	log.Printf("started: source=%s idle=%v active=%v classification=%q setup=%v db=%s",
		opts.Source, opts.IdleInterval, opts.ActiveInterval, opts.Classification, opts.SetupEnabled, opts.DBPath)

	ticker := time.NewTicker(opts.IdleInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	deps := loopDeps{
		Poller:    telemetry.NewPoller(src, opts.ReadTimeout),
		Pause:     pause,
		Store:     st,
		Sink:      sink,
		Publisher: publisher,
		MQTT:      mqttStatus,
		Status:    tracker,
	}
	cfg := loopConfig{
		Tracker: logic.TrackerConfig{
			Mode:          opts.Classification,
			Brands:        brands,
			PodiumByClass: opts.PodiumByClass,
			TickSeconds:   opts.ActiveInterval.Seconds(),
		},
		Setup:          logic.SetupConfig{Identifier: opts.Identifier, Brands: brands},
		SetupEnabled:   opts.SetupEnabled,
		IdleInterval:   opts.IdleInterval,
		ActiveInterval: opts.ActiveInterval,
		Heartbeat:      opts.Heartbeat,
	}
	return runLoop(context.Background(), deps, cfg, time.Now, ticker.C, sigCh, ticker.Reset)
}

func openSource(opts runOptions) (telemetry.Source, error) {
	switch opts.Source {
	case sourceReplay:
		return telemetry.OpenReplay(opts.ReplayPath)
	case sourceMQTT:
		return telemetry.NewMQTTSource(opts.SourceBroker, opts.ClientID+"-telemetry", opts.Topic, telemetryStaleAfter)
	default:
		return nil, fmt.Errorf("unknown source %q", opts.Source)
	}
}

// nopPublisher stands in when no broker is configured.
type nopPublisher struct{}

func (nopPublisher) Publish(mqtt.Event) error             { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) Close() error                         { return nil }

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) error {
	if value == nil {
		return nil
	}
	if cmd.Flags().Changed(name) {
		return nil
	}
	d, err := time.ParseDuration(*value)
	if err != nil {
		return fmt.Errorf("invalid %s %q in config: %w", name, *value, err)
	}
	*target = d
	return nil
}
