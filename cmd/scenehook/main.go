// Package main is the CLI entry point for scenehook.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/scenehook/internal/config"
	"github.com/eliteGoblin/scenehook/internal/daemon"
	"github.com/eliteGoblin/scenehook/internal/domain"
	"github.com/eliteGoblin/scenehook/internal/infra"
	"github.com/eliteGoblin/scenehook/internal/matcher"
	"github.com/eliteGoblin/scenehook/internal/ocr"
	"github.com/eliteGoblin/scenehook/internal/policy"
	"github.com/eliteGoblin/scenehook/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scenehook",
	Short: "Scene-driven text hook and OCR automation",
	Long: `scenehook watches the active OBS scene and keeps the matching helper running:
the hook agent with the right per-game script, Textractor or LunaTranslator,
and an OCR session for scenes that want one.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the automation engine in the foreground",
	Long: `Polls the active scene and launches, supervises and stops helper processes
until interrupted. Only one instance may run per data directory.`,
	RunE: runEngine,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	envFile    string
	debugLog   bool
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (TOML, or YAML by extension)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Env file with SCENEHOOK_* overrides")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Verbose development logging")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(bitnessCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(profileCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if def := filepath.Join(config.DefaultDataDir(), "config.toml"); fileExists(def) {
			path = def
		}
	}
	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, err
	}
	if debugLog {
		cfg.Log.Debug = true
	}
	return cfg, nil
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := createLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	lock, err := daemon.AcquireInstanceLock(filepath.Join(config.DefaultDataDir(), "scenehook.lock"))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	store, err := openProfileStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	fs := infra.NewFileSystem()
	obs := infra.NewOBSClient(cfg.OBS.URL, cfg.OBS.Password, cfg.OBS.Timeout.Duration, logger.Named("obs"))
	defer obs.Close()

	ocrManager := ocr.NewManager(ocr.Config{
		Command:   cfg.OCR.Command,
		Args:      cfg.OCR.Args,
		WorkDir:   fs.ExpandHome(cfg.OCR.WorkDir),
		StopGrace: cfg.OCR.StopGrace.Duration,
	}, logger.Named("ocr"))
	messages, unsubscribe := ocrManager.Subscribe()
	defer unsubscribe()
	go logOCRMessages(messages, logger.Named("ocr"))

	engine := daemon.NewEngine(engineConfig(cfg), daemon.EngineDeps{
		Source:    obs,
		Profiles:  store,
		OCR:       ocrManager,
		Inspector: infra.NewProcessInspector(logger.Named("process")),
		Resolver:  newResolver(cfg),
		Policies:  newPolicies(cfg),
		Binaries:  infra.NewBinaryInspector(fs),
		Launcher:  infra.NewLauncher(fs, logger.Named("launcher")),
		FS:        fs,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("scenehook starting",
		zap.String("version", Version),
		zap.String("obs", cfg.OBS.URL),
		zap.String("profiles", cfg.Profiles.Path))

	err = engine.Run(ctx)

	// The engine tears down its own session; this catches one left by a failed stop.
	if _, stopErr := ocrManager.Stop(context.Background(), domain.AutoLauncherSource); stopErr != nil {
		logger.Warn("failed to stop OCR", zap.Error(stopErr))
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("received shutdown signal")
		return nil
	}
	return err
}

func logOCRMessages(messages <-chan ocr.Message, logger *zap.Logger) {
	for msg := range messages {
		switch msg.Event {
		case ocr.EventOCRResult:
			logger.Debug("ocr result", zap.Any("data", msg.Data))
		case ocr.EventStatus:
			logger.Info("ocr status", zap.Any("data", msg.Data))
		}
	}
}

func engineConfig(cfg *config.Config) daemon.EngineConfig {
	return daemon.EngineConfig{
		DefaultInterval: cfg.Polling.Default.Duration,
		FastInterval:    cfg.Polling.Fast.Duration,
		DecayStep:       cfg.Polling.DecayStep.Duration,
		OCRInterval:     cfg.Polling.OCR.Duration,
		Locator: locatorConfig(cfg),
		TextHook: usecase.TextHookConfig{
			AgentPath:     cfg.Agent.Path,
			ScriptsDir:    cfg.Agent.ScriptsDir,
			MaxRelaunches: cfg.Agent.MaxRelaunches,
		},
	}
}

func locatorConfig(cfg *config.Config) usecase.LocatorConfig {
	return usecase.LocatorConfig{
		RetryInterval:  cfg.Polling.LocateRetry.Duration,
		Timeout:        cfg.Polling.LocateTimeout.Duration,
		MinMemoryBytes: infra.GameMemoryFloor(),
	}
}

func newResolver(cfg *config.Config) *matcher.Resolver {
	return matcher.NewResolver(matcher.Options{
		NameMinScore:    cfg.Matcher.NameMinScore,
		FuzzyThreshold:  cfg.Matcher.FuzzyThreshold,
		FuzzyMaxResults: cfg.Matcher.FuzzyMaxResults,
	})
}

func newPolicies(cfg *config.Config) *policy.Registry {
	return policy.NewRegistry(toolSettings(cfg.Textractor), toolSettings(cfg.Luna))
}

func toolSettings(t config.ToolConfig) policy.ToolSettings {
	return policy.ToolSettings{
		Path64:    t.Path64,
		Path32:    t.Path32,
		Delay:     t.Delay.Duration,
		Minimized: t.Minimized,
	}
}

// openProfileStore expands the configured paths and opens the backend.
func openProfileStore(cfg *config.Config) (domain.ProfileStore, error) {
	fs := infra.NewFileSystem()
	keyFile := ""
	if cfg.Profiles.KeyFile != "" {
		keyFile = fs.ExpandHome(cfg.Profiles.KeyFile)
	}
	return infra.OpenProfileStore(cfg.Profiles.Backend, fs.ExpandHome(cfg.Profiles.Path), keyFile)
}

func createLogger(cfg config.LogConfig) *zap.Logger {
	if cfg.Debug {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}

	zc := zap.NewProductionConfig()
	if len(cfg.Paths) > 0 {
		zc.OutputPaths = cfg.Paths
	}
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		out, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(out))
		return
	}
	fmt.Printf("scenehook %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
