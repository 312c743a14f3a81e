package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/review-scraper/pkg/config"
	"github.com/Sriram-PR/review-scraper/pkg/metrics"
	"github.com/Sriram-PR/review-scraper/pkg/orchestrate"
	"github.com/Sriram-PR/review-scraper/pkg/watch"
)

const version = "0.4.0"

const shutdownGrace = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:], false)
	case "resume":
		runCrawl(os.Args[2:], true)
	case "watch":
		runWatch(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list-sources":
		runListSources(os.Args[2:])
	case "version":
		fmt.Printf("review-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `review-scraper - Airline review crawler

Usage:
  review-scraper <command> [options]

Commands:
  crawl         Start a fresh crawl
  resume        Resume an interrupted crawl from its saved state
  watch         Re-crawl sources on a schedule
  validate      Validate configuration file
  list-sources  List configured review sources
  version       Show version info

Run 'review-scraper <command> -h' for command-specific help.`)
}

// loadConfig reads the config file and applies .env and environment overrides
func loadConfig(path string) (*config.AppConfig, error) {
	if err := config.LoadEnvFiles(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// parseSourceKeys resolves -source/-sources into a key list. A nil result with
// all=true means every configured source.
func parseSourceKeys(single, multi string, all bool) ([]string, error) {
	switch {
	case all:
		return nil, nil
	case multi != "":
		var keys []string
		for _, s := range strings.Split(multi, ",") {
			if s = strings.TrimSpace(s); s != "" {
				keys = append(keys, s)
			}
		}
		if len(keys) == 0 {
			return nil, errors.New("-sources contains no source keys")
		}
		return keys, nil
	case single != "":
		return []string{single}, nil
	default:
		return nil, errors.New("one of -source, -sources, or -all-sources is required")
	}
}

// runCrawl handles both crawl and resume subcommands
func runCrawl(args []string, isResume bool) {
	cmdName := "crawl"
	if isResume {
		cmdName = "resume"
	}

	fs := flag.NewFlagSet(cmdName, flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	sourceKey := fs.String("source", "", "Source key from config (single source)")
	sources := fs.String("sources", "", "Comma-separated source keys crawled in parallel")
	allSources := fs.Bool("all-sources", false, "Crawl all configured sources in parallel")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	logFormat := fs.String("logformat", "text", "Log format (text, json)")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus /metrics address, overrides metrics_addr from config")
	writeVisitedLog := fs.Bool("write-visited-log", false, "Write visited page log on completion")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: review-scraper %s [options]\n\nOptions:\n", cmdName)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  review-scraper %s -source skytrax\n", cmdName)
		fmt.Fprintf(os.Stderr, "  review-scraper %s -sources skytrax,skytrax_mirror\n", cmdName)
		fmt.Fprintf(os.Stderr, "  review-scraper %s -all-sources -metrics-addr :9090\n", cmdName)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	sourceKeys, err := parseSourceKeys(*sourceKey, *sources, *allSources)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		os.Exit(1)
	}

	os.Exit(executeCrawl(crawlOptions{
		configFile:      *configFile,
		sourceKeys:      sourceKeys,
		allSources:      *allSources,
		logLevel:        *logLevel,
		logFormat:       *logFormat,
		pprofAddr:       *pprofAddr,
		metricsAddr:     *metricsAddr,
		writeVisitedLog: *writeVisitedLog,
		resume:          isResume,
	}))
}

// runWatch handles the watch subcommand
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	sourceKey := fs.String("source", "", "Source key from config (single source)")
	sources := fs.String("sources", "", "Comma-separated source keys")
	allSources := fs.Bool("all-sources", false, "Watch all configured sources")
	interval := fs.String("interval", "24h", "Crawl interval (e.g., 30m, 1h, 24h, 7d)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	logFormat := fs.String("logformat", "text", "Log format (text, json)")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus /metrics address, overrides metrics_addr from config")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: review-scraper watch [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  review-scraper watch -source skytrax -interval 24h\n")
		fmt.Fprintf(os.Stderr, "  review-scraper watch -all-sources -interval 7d\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	sourceKeys, err := parseSourceKeys(*sourceKey, *sources, *allSources)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		os.Exit(1)
	}
	every, err := watch.ParseInterval(*interval)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	os.Exit(executeWatch(crawlOptions{
		configFile:  *configFile,
		sourceKeys:  sourceKeys,
		allSources:  *allSources,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		metricsAddr: *metricsAddr,
	}, every))
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	sourceKey := fs.String("source", "", "Source key to validate (optional, validates all if empty)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: review-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, *sourceKey, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, sourceKey string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	if sourceKey != "" {
		srcCfg, ok := appCfg.Sources[sourceKey]
		if !ok {
			fmt.Fprintf(stderr, "Error: source '%s' not found in config\n", sourceKey)
			return 1
		}
		srcWarnings, err := srcCfg.Validate()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", sourceKey, err)
			return 1
		}
		for _, w := range srcWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", sourceKey, w)
		}
		fmt.Fprintf(stdout, "OK: Source '%s' configuration is valid\n", sourceKey)
	} else {
		if len(appCfg.Sources) == 0 {
			fmt.Fprintln(stderr, "ERROR: no sources configured")
			return 1
		}
		hasError := false
		for _, key := range orchestrate.GetAllSourceKeys(appCfg) {
			srcCfg := appCfg.Sources[key]
			srcWarnings, err := srcCfg.Validate()
			if err != nil {
				fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
				hasError = true
				continue
			}
			for _, w := range srcWarnings {
				fmt.Fprintf(stdout, "WARN: [%s] %s\n", key, w)
			}
			fmt.Fprintf(stdout, "OK: [%s]\n", key)
		}
		if hasError {
			return 1
		}
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runListSources handles the list-sources subcommand
func runListSources(args []string) {
	fs := flag.NewFlagSet("list-sources", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: review-scraper list-sources [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doListSources(*configFile, os.Stdout, os.Stderr))
}

// doListSources lists sources and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doListSources(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Sources in %s:\n\n", configPath)
	for _, key := range orchestrate.GetAllSourceKeys(appCfg) {
		src := appCfg.Sources[key]
		fmt.Fprintf(stdout, "  %s\n", key)
		fmt.Fprintf(stdout, "    Index: %s\n", src.IndexURL)
		if src.AllowedDomain != "" {
			fmt.Fprintf(stdout, "    Domain: %s\n", src.AllowedDomain)
		}
		if src.MaxAirlines > 0 {
			fmt.Fprintf(stdout, "    Max Airlines: %d\n", src.MaxAirlines)
		}
		if src.MaxPagesPerAirline > 0 {
			fmt.Fprintf(stdout, "    Max Pages/Airline: %d\n", src.MaxPagesPerAirline)
		}
		fmt.Fprintln(stdout)
	}
	return 0
}

// setupLogger creates a configured logrus.Logger with the given level and format.
func setupLogger(logLevelStr, logFormat string) *logrus.Logger {
	log := logrus.New()
	if logFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	}
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Infof("Setting log level to: %s", level.String())
	}

	return log
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) (*config.AppConfig, error) {
	log.Infof("Loading configuration from %s", configFile)
	appCfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}

	appWarnings, err := appCfg.Validate()
	for _, w := range appWarnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// validateSourceConfigs validates each selected source and stores the defaults it applied
func validateSourceConfigs(appCfg *config.AppConfig, sourceKeys []string, log *logrus.Logger) error {
	for _, key := range sourceKeys {
		srcCfg := appCfg.Sources[key]
		srcWarnings, err := srcCfg.Validate()
		if err != nil {
			return fmt.Errorf("source '%s' configuration error: %w", key, err)
		}
		for _, w := range srcWarnings {
			log.Warnf("[%s] %s", key, w)
		}
		appCfg.Sources[key] = srcCfg
	}
	return nil
}

// startPprof starts the pprof HTTP server if addr is non-empty.
func startPprof(addr string, log *logrus.Logger) {
	if addr == "" {
		return
	}
	runtime.SetBlockProfileRate(1000)
	runtime.SetMutexProfileFraction(1000)
	go func() {
		log.Infof("Starting pprof server at http://%s/debug/pprof/", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Errorf("pprof server error: %v", err)
		}
	}()
}

// logAppConfig logs the effective global configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Global Config: Workers:%d, MaxReqs:%d, MaxReqPerHost:%d, DefaultDelay:%v",
		appCfg.NumWorkers, appCfg.MaxRequests, appCfg.MaxRequestsPerHost, appCfg.DefaultDelayPerHost)
	log.Infof("Global Config: StateDir:%s, OutputDir:%s, RespectRobots:%t",
		appCfg.StateDir, appCfg.OutputBaseDir, appCfg.RespectRobots)
	log.Infof("Global Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay)
	log.Infof("Global Config Timeouts: SemaphoreAcquire:%v, GlobalCrawl:%v, PerPage:%v",
		appCfg.SemaphoreAcquireTimeout, appCfg.GlobalCrawlTimeout, appCfg.PerPageTimeout)
	log.Infof("Global Config Sinks: JSONL:%t, Postgres:%t",
		appCfg.Sinks.JSONL.Enabled, appCfg.Sinks.Postgres.Enabled)
}

type crawlOptions struct {
	configFile      string
	sourceKeys      []string
	allSources      bool
	logLevel        string
	logFormat       string
	pprofAddr       string
	metricsAddr     string
	writeVisitedLog bool
	resume          bool
}

// prepareRun loads and validates the config and resolves the selected sources
func prepareRun(opts crawlOptions, log *logrus.Logger) (*config.AppConfig, []string, error) {
	appCfg, err := loadAndValidateConfig(opts.configFile, log)
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}
	logAppConfig(appCfg, log)

	sourceKeys := opts.sourceKeys
	if opts.allSources {
		sourceKeys = orchestrate.GetAllSourceKeys(appCfg)
		log.Infof("All sources mode: found %d source(s)", len(sourceKeys))
		if len(sourceKeys) == 0 {
			return nil, nil, errors.New("no sources configured")
		}
	}
	if err := orchestrate.ValidateSourceKeys(appCfg, sourceKeys); err != nil {
		return nil, nil, fmt.Errorf("invalid source keys: %w", err)
	}
	if err := validateSourceConfigs(appCfg, sourceKeys, log); err != nil {
		return nil, nil, err
	}
	return appCfg, sourceKeys, nil
}

// startMetrics serves /metrics until ctx is done when an address is configured
func startMetrics(ctx context.Context, appCfg *config.AppConfig, flagAddr string, log *logrus.Logger) *metrics.Metrics {
	m := metrics.New()
	addr := appCfg.MetricsAddr
	if flagAddr != "" {
		addr = flagAddr
	}
	m.Serve(ctx, addr, log.WithField("component", "metrics"))
	return m
}

// executeCrawl runs the selected sources and returns the process exit code
func executeCrawl(opts crawlOptions) int {
	log := setupLogger(opts.logLevel, opts.logFormat)

	appCfg, sourceKeys, err := prepareRun(opts, log)
	if err != nil {
		log.Error(err)
		return 1
	}

	startPprof(opts.pprofAddr, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := startMetrics(ctx, appCfg, opts.metricsAddr, log)

	orch := orchestrate.NewOrchestrator(ctx, appCfg, sourceKeys, orchestrate.Options{
		Resume:          opts.resume,
		WriteVisitedLog: opts.writeVisitedLog,
		Metrics:         m,
	}, log.WithField("component", "crawl"))

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		var sig os.Signal
		select {
		case sig = <-sigChan:
		case <-ctx.Done():
			return
		}
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		orch.Cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(shutdownGrace):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		case <-ctx.Done():
		}
	}()

	results := orch.Run()
	return exitCode(results, log)
}

// executeWatch re-crawls the selected sources every interval until signalled
func executeWatch(opts crawlOptions, interval time.Duration) int {
	log := setupLogger(opts.logLevel, opts.logFormat)

	appCfg, sourceKeys, err := prepareRun(opts, log)
	if err != nil {
		log.Error(err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := startMetrics(ctx, appCfg, opts.metricsAddr, log)
	crawl := watch.OrchestratorCrawl(appCfg, orchestrate.Options{Metrics: m}, log.WithField("component", "crawl"))
	scheduler := watch.NewScheduler(appCfg.StateDir, sourceKeys, interval, crawl, log.WithField("component", "watch"))

	if err := scheduler.Run(ctx); err != nil {
		log.Errorf("Watch scheduler error: %v", err)
		return 1
	}
	return 0
}

// exitCode maps crawl results to a process exit code. A crawl stopped by the
// user counts as a clean exit; a global timeout does not.
func exitCode(results []orchestrate.SourceResult, log *logrus.Logger) int {
	code := 0
	for _, r := range results {
		switch {
		case r.Success:
		case errors.Is(r.Error, context.Canceled):
			log.Warnf("[%s] Crawl cancelled gracefully.", r.SourceKey)
		case errors.Is(r.Error, context.DeadlineExceeded):
			log.Errorf("[%s] Crawl timed out (global timeout).", r.SourceKey)
			code = 1
		default:
			log.Errorf("[%s] Crawl finished with error: %v", r.SourceKey, r.Error)
			code = 1
		}
	}
	if code == 0 {
		log.Info("Crawl completed.")
	}
	return code
}
