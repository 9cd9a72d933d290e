package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmritesh/Refari-Notifier/internal/api"
	"github.com/dmritesh/Refari-Notifier/internal/api/health"
	"github.com/dmritesh/Refari-Notifier/internal/api/organizations"
	"github.com/dmritesh/Refari-Notifier/internal/engine"
	"github.com/dmritesh/Refari-Notifier/internal/hubstaff"
	"github.com/dmritesh/Refari-Notifier/internal/metrics"
	"github.com/dmritesh/Refari-Notifier/internal/notifier"
	"github.com/dmritesh/Refari-Notifier/internal/storage"
	"github.com/dmritesh/Refari-Notifier/internal/ticket"
	"github.com/dmritesh/Refari-Notifier/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "refari-notifier",
	Short: "Refari Notifier - Hubstaff to Slack work-session announcements",
	Long: `Refari Notifier polls Hubstaff activity for each registered
organization and announces in Slack when a user starts working on a
ticket, at most once per genuine work session.`,
	RunE: runNotifier,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.VersionString())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "admin API listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runNotifier(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.HTTPAddress = httpAddr
	}
	cfg.Verbose = verbose

	// Get master key from environment
	masterKey := os.Getenv("REFARI_MASTER_KEY")
	if masterKey == "" {
		return fmt.Errorf("REFARI_MASTER_KEY environment variable is required")
	}

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize storage
	store := storage.NewSQLiteStorage(cfg.Database.Path, []byte(masterKey))
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Printf("database initialized at %s", cfg.Database.Path)

	// Hubstaff OAuth is optional: without client credentials the
	// connect endpoints refuse and no organization can be polled.
	var tokens *hubstaff.TokenManager
	var oauthSvc organizations.OAuthService
	if cfg.Hubstaff.ClientID != "" {
		clientSecret := os.Getenv("REFARI_HUBSTAFF_CLIENT_SECRET")
		if clientSecret == "" {
			return fmt.Errorf("REFARI_HUBSTAFF_CLIENT_SECRET environment variable is required when hubstaff.client_id is set")
		}
		tokens = hubstaff.NewTokenManager(hubstaff.TokenManagerConfig{
			ClientID:     cfg.Hubstaff.ClientID,
			ClientSecret: clientSecret,
			RedirectURL:  cfg.Hubstaff.RedirectURL,
			Endpoint:     hubstaff.DefaultEndpoint,
			APIBaseURL:   cfg.Hubstaff.APIBaseURL,
		}, store.Organizations())
		oauthSvc = tokens
	} else {
		log.Printf("warning: hubstaff.client_id not configured, polling is disabled")
		tokens = hubstaff.NewTokenManager(hubstaff.TokenManagerConfig{}, store.Organizations())
	}

	feed := hubstaff.NewClient(hubstaff.ClientConfig{BaseURL: cfg.Hubstaff.APIBaseURL})
	resolver := ticket.NewResolver(ticket.NewFreshdeskClient(), ticket.NewGitLabClient())
	sender := notifier.NewSlackNotifier()

	worker := engine.NewWorker(store, tokens, feed, resolver, sender, engine.Config{
		PollInterval: cfg.Poller.Interval(),
		Lookback:     cfg.Poller.Lookback(),
		RateLimit:    cfg.Poller.RateLimitPerMinute,
	})

	// Admin API with health checks over the database and poller.
	apiServer, err := api.New(&api.Config{
		Address: cfg.Server.HTTPAddress,
		Verbose: cfg.Verbose,
	}, store, oauthSvc)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}
	apiServer.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))
	apiServer.RegisterHealthChecker(health.NewPollerChecker(worker.LastTick, func() int64 {
		return time.Now().Unix()
	}))

	metricsServer := metrics.NewServer(cfg.Server.MetricsAddress)
	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	log.Printf("starting refari-notifier %s", config.Version)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		return apiServer.Run(ctx)
	})
	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- metricsServer.Start() }()
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsServer.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run notifier: %w", err)
	}

	log.Printf("notifier stopped")
	return nil
}
