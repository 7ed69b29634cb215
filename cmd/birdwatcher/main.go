// Package main implements the Birdwatcher application: a Slack bot that
// answers questions about Tinybird workspaces through an MCP-connected agent.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/tinybirdco/birdwatcher/internal/agent"
	"github.com/tinybirdco/birdwatcher/internal/bot"
	httpClient "github.com/tinybirdco/birdwatcher/internal/common/http"
	"github.com/tinybirdco/birdwatcher/internal/common/logging"
	"github.com/tinybirdco/birdwatcher/internal/config"
	"github.com/tinybirdco/birdwatcher/internal/dedup"
	"github.com/tinybirdco/birdwatcher/internal/monitoring"
	"github.com/tinybirdco/birdwatcher/internal/notify"
	"github.com/tinybirdco/birdwatcher/internal/observability"
	"github.com/tinybirdco/birdwatcher/internal/secrets"
	slackbot "github.com/tinybirdco/birdwatcher/internal/slack"
	"github.com/tinybirdco/birdwatcher/internal/tinybird"
	"github.com/tinybirdco/birdwatcher/internal/webhook"
	"github.com/tinybirdco/birdwatcher/internal/workers"
)

var (
	configFile     = flag.String("config", "config.json", "Path to the configuration JSON file")
	debug          = flag.Bool("debug", false, "Enable debug logging")
	notifySchedule = flag.String("notify", "", "Run the notification sweep for a schedule (e.g. daily) and exit")
)

func main() {
	flag.Parse()

	logger := setupLogging()
	logger.Info("Starting Birdwatcher (debug=%v)", *debug)

	cfg, err := config.LoadConfig(*configFile, logger)
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}

	box, err := secrets.New(os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		logger.Fatal("Failed to initialize token encryption: %v", err)
	}

	httpc := buildHTTPClient(logger, cfg)
	store := tinybird.NewStore(cfg.Tinybird.Host, cfg.Tinybird.AdminToken, httpc, logger)

	slackClient, err := slackbot.New(cfg.Slack.BotToken, cfg.Slack.BotUserID, httpc, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Slack client: %v", err)
	}

	tracing := observability.NewTracingHandler(cfg.Tracing.Enabled, logger)
	shutdownTracing := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		shutdownTracing, err = observability.Setup(context.Background(), cfg.Tracing.Endpoint, logger)
		if err != nil {
			logger.Fatal("Failed to set up trace export: %v", err)
		}
	}

	runner := agent.NewRunner(
		cfg.Agent,
		cfg.MCP.URL,
		parseDuration(logger, cfg.Timeouts.MCPInitTimeout, "mcpInitTimeout"),
		parseDuration(logger, cfg.Timeouts.AgentRunTimeout, "agentRunTimeout"),
		tracing,
		logger,
	)

	if *notifySchedule != "" {
		notifier := notify.New(store, runner, slackClient, box, logger)
		if err := notifier.Run(context.Background(), *notifySchedule); err != nil {
			logger.Fatal("Notification sweep failed: %v", err)
		}
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Trace export shutdown failed: %v", err)
		}
		return
	}

	if cfg.Monitoring.Enabled {
		monitoring.RegisterMetrics()
		startMetricsServer(logger, cfg.Monitoring.MetricsPort)
	}

	ledger := dedup.NewFileLedger(cfg.Dedup.LedgerPath, logger, dedup.WithWindow(cfg.Dedup.Window()))
	pool := workers.NewPool(cfg.Workers.PoolSize, cfg.Workers.QueueSize, logger)

	teams := slackbot.NewTeams(slackClient, store, box, httpc, logger)
	resolver := func(ctx context.Context, teamID string) (bot.SlackAPI, error) {
		return teams.ClientForTeam(ctx, teamID)
	}

	conversationBot := bot.New(slackClient, resolver, runner, store, box, ledger, logger)
	handler := webhook.NewHandler(
		conversationBot,
		pool,
		webhook.OAuthConfig{
			ClientID:     cfg.Slack.ClientID,
			ClientSecret: cfg.Slack.ClientSecret,
			RedirectURI:  cfg.Slack.RedirectURI,
		},
		store,
		box,
		logger,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Webhook listener running on port %d", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Webhook listener error: %v", err)
		}
	}()

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info("Received signal %v, shutting down...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Webhook listener shutdown failed: %v", err)
	}

	// Drain queued event work before exiting
	pool.Close()

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Trace export shutdown failed: %v", err)
	}
}

// setupLogging initializes the logging system
func setupLogging() *logging.Logger {
	logLevel := logging.LevelInfo
	logLevelName := "info"

	envLogLevel := os.Getenv("LOG_LEVEL")
	if envLogLevel != "" {
		logLevel = logging.ParseLevel(envLogLevel)
		logLevelName = envLogLevel
	} else if *debug {
		logLevel = logging.LevelDebug
		logLevelName = "debug"
	}

	logger := logging.New("birdwatcher", logLevel)
	logger.Info("Log level set to: %s", logLevelName)
	return logger
}

// buildHTTPClient configures the shared outbound HTTP client from the
// timeout and retry sections of the configuration.
func buildHTTPClient(logger *logging.Logger, cfg *config.Config) *httpClient.Client {
	opts := httpClient.DefaultOptions()
	opts.Timeout = parseDuration(logger, cfg.Timeouts.HTTPRequestTimeout, "httpRequestTimeout")
	opts.MaxRetries = cfg.Retry.MaxAttempts
	opts.RetryBackoff = parseDuration(logger, cfg.Retry.BaseBackoff, "baseBackoff")
	opts.MaxBackoff = parseDuration(logger, cfg.Retry.MaxBackoff, "maxBackoff")
	return httpClient.NewClient(opts)
}

func parseDuration(logger *logging.Logger, value, name string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Fatal("Invalid duration for %s: %v", name, err)
	}
	return d
}

func startMetricsServer(logger *logging.Logger, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("Metrics server running on port %d", port)
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error: %v", err)
		}
	}()
}
