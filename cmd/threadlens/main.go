package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"threadlens/internal/budget"
	"threadlens/internal/cache"
	"threadlens/internal/classify"
	"threadlens/internal/config"
	"threadlens/internal/content"
	"threadlens/internal/heuristics"
	"threadlens/internal/llm"
	"threadlens/internal/logging"
	"threadlens/internal/pipeline"
	"threadlens/internal/store"
	"threadlens/internal/types"
)

const version = "1.0.0"

var (
	// Global flags
	verbose    bool
	configPath string

	// Report flags
	windowDays   int
	windowStart  string
	windowEnd    string
	seed         int64
	outputPath   string
	patternsDir  string
	targetGroups []string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "threadlens",
	Short: "threadlens - reproducible community sentiment reports",
	Long: `threadlens samples a community's recent discussion with a seeded,
reproducible strategy and produces a statistical sentiment report.

Comment text never leaves the classification stage: reports carry only
IDs, labels, and aggregate statistics. A cheap local heuristic pass
classifies the easy cases; a remote model handles the rest under a hard
token and cost budget. Running the same subject, window, and seed twice
produces the same sample.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// reportCmd runs the full pipeline for one subject
var reportCmd = &cobra.Command{
	Use:   "report [subreddit]",
	Short: "Run a sentiment report for a subreddit",
	Long: `Runs the full pipeline for one subject: fetch, sample, classify,
aggregate, persist. Writes the result as JSON to stdout or --output.

The time window defaults to the last --window-days days ending now.
Pass --window-start and --window-end (YYYY-MM-DD) for an explicit
window; explicit dates make the derived seed, and so the sample,
reproducible across invocations.

Example:
  threadlens report golang --window-days 7
  threadlens report golang --window-start 2026-08-01 --window-end 2026-08-29 -o report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the threadlens version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("threadlens %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "threadlens.yaml", "Config file path")

	reportCmd.Flags().IntVar(&windowDays, "window-days", 7, "Analysis window length in days, ending now")
	reportCmd.Flags().StringVar(&windowStart, "window-start", "", "Window start date (YYYY-MM-DD, UTC)")
	reportCmd.Flags().StringVar(&windowEnd, "window-end", "", "Window end date (YYYY-MM-DD, UTC)")
	reportCmd.Flags().Int64Var(&seed, "seed", 0, "Sampling seed override (0 derives from subject and window)")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the JSON result to a file instead of stdout")
	reportCmd.Flags().StringVar(&patternsDir, "patterns", "", "Directory of extra hostility pattern packs")
	reportCmd.Flags().StringSliceVar(&targetGroups, "target-group", nil, "Enable target group analysis for these groups")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runReport wires the whole pipeline together and runs it once.
func runReport(cmd *cobra.Command, args []string) error {
	subject := args[0]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logging.Initialize(cfg.DataDir, logging.Settings{
		DebugMode:  cfg.Logging.DebugMode,
		Categories: cfg.Logging.Categories,
		Level:      cfg.Logging.Level,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	windowStartTime, windowEndTime, err := resolveWindow()
	if err != nil {
		return err
	}
	logger.Info("Starting report",
		zap.String("subject", subject),
		zap.Time("window_start", windowStartTime),
		zap.Time("window_end", windowEndTime))

	// Upstream content source, rate limited process-wide.
	bucket := content.NewTokenBucket(cfg.Content.Burst, cfg.Content.RequestsPerMinute)
	source := content.NewRedditClient(content.RedditConfig{
		BaseURL:   cfg.Content.BaseURL,
		UserAgent: cfg.Content.UserAgent,
		Timeout:   cfg.Content.TimeoutDuration(),
	}, bucket)

	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}

	classCache, err := newCache(cfg)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer classCache.Close()

	st, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	tracker := budget.NewTracker(cfg.Budget)
	orch := classify.NewOrchestrator(llmClient, classCache, tracker, cfg.LLM, cfg.Cache.TTLDuration())

	registry := heuristics.NewRegistry()
	if patternsDir != "" {
		if err := registry.LoadDir(patternsDir); err != nil {
			return fmt.Errorf("failed to load pattern packs: %w", err)
		}
		if err := registry.Watch(ctx, patternsDir); err != nil {
			return fmt.Errorf("failed to watch pattern packs: %w", err)
		}
		logger.Info("Loaded pattern packs", zap.String("dir", patternsDir))
	}

	ctrl := pipeline.NewController(source, orch, registry, tracker, st, cfg)
	ctrl.OnPhase(func(phase types.Phase) {
		logger.Info("Phase", zap.String("phase", phase.String()))
	})
	ctrl.OnProgress(func(percent int) {
		logger.Debug("Progress", zap.Int("percent", percent))
	})

	result := ctrl.Run(ctx, subject, windowStartTime, windowEndTime)

	logger.Info("Report finished",
		zap.String("run_id", result.RunID),
		zap.Bool("success", result.Success),
		zap.Int("comments", len(result.SampledComments)),
		zap.Int("tokens_used", result.TotalTokensUsed),
		zap.Float64("cost_usd", result.EstimatedCostUSD))

	if err := writeResult(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("report failed: %s", result.Error)
	}
	return nil
}

// applyFlagOverrides layers command-line flags over the loaded config.
func applyFlagOverrides(cfg *config.Config) {
	if seed != 0 {
		cfg.Sampling.Seed = seed
	}
	if len(targetGroups) > 0 {
		cfg.Pipeline.EnableTargetGroupAnalysis = true
		cfg.Pipeline.TargetGroups = targetGroups
	}
	// Default the sqlite paths into the data dir when unset.
	if cfg.Store.Backend == "sqlite" && cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(cfg.DataDir, "reports.db")
	}
	if cfg.Cache.Backend == "sqlite" && cfg.Cache.Path == "" {
		cfg.Cache.Path = filepath.Join(cfg.DataDir, "cache.db")
	}
}

func resolveWindow() (time.Time, time.Time, error) {
	if windowStart == "" && windowEnd == "" {
		end := time.Now().UTC().Truncate(time.Hour)
		return end.Add(-time.Duration(windowDays) * 24 * time.Hour), end, nil
	}
	start, err := time.Parse("2006-01-02", windowStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --window-start: %w", err)
	}
	end, err := time.Parse("2006-01-02", windowEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --window-end: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--window-end must be after --window-start")
	}
	return start, end, nil
}

func newCache(cfg *config.Config) (cache.Cache, error) {
	if cfg.Cache.Backend == "sqlite" {
		return cache.NewSQLiteCache(cfg.Cache.Path)
	}
	return cache.NewMemoryCache(), nil
}

func writeResult(result *types.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')

	if outputPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	logger.Info("Result written", zap.String("path", outputPath))
	return nil
}
