package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/common/cnst"
	"github.com/Brownbull/gabeda-backend/internal/common/config"
	"github.com/Brownbull/gabeda-backend/internal/common/dto"
	"github.com/Brownbull/gabeda-backend/internal/ingest"
	"github.com/Brownbull/gabeda-backend/pkg/trace"
	"github.com/Brownbull/gabeda-backend/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string

	ingestTenant   uint
	ingestUploader uint
	ingestFile     string
	tokenUser      string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of apiserver",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "apiserver version %s\n", version.Get())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP api and the ingestion workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a local CSV file for a tenant and wait for the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd)
		},
	}

	watchdogCmd = &cobra.Command{
		Use:   "watchdog",
		Short: "Fail attempts stuck in processing once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchdog(cmd)
		},
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd)
		},
	}

	rootCmd = &cobra.Command{
		Use:   "apiserver",
		Short: "Gabeda analytics API server",
		Long:  `Ingests tenant sales CSV exports into the transaction ledger and serves the derived analytics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "", "path to configuration file")

	ingestCmd.Flags().UintVar(&ingestTenant, "tenant", 0, "tenant id")
	ingestCmd.Flags().UintVar(&ingestUploader, "uploader", 0, "uploading user id")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "CSV file to ingest")
	_ = ingestCmd.MarkFlagRequired("tenant")
	_ = ingestCmd.MarkFlagRequired("file")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "username")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(versionCmd, serveCmd, ingestCmd, watchdogCmd, tokenCmd)
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return "apiserver.yaml"
}

func loadConfig() (*config.APIServerConfig, error) {
	cfg, path, err := config.LoadConfig[config.APIServerConfig](getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load configuration %s: %w", path, err)
	}
	return cfg, nil
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lg := initLogger(cfg)
	defer lg.Sync()

	if cfg.Tracing.Enabled {
		shutdown, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
		if err != nil {
			lg.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	a, err := newApp(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.runner.Start(); err != nil {
		return err
	}
	if n, err := a.runner.RequeuePending(ctx, a.db); err != nil {
		lg.Warn("failed to requeue pending attempts", zap.Error(err), zap.Int("requeued", n))
	}
	if err := a.watchdog.Start(); err != nil {
		return err
	}
	defer func() { _ = a.watchdog.Stop() }()

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: a.initRouter(),
	}
	errCh := make(chan error, 1)
	go func() {
		lg.Info("starting apiserver",
			zap.String("version", version.Get()),
			zap.Int("port", cfg.Server.Port),
			zap.String("runner", cfg.Pipeline.Runner))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		lg.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runIngest(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Pipeline.Runner = string(cnst.RunnerInline)
	lg := initLogger(cfg)
	defer lg.Sync()

	content, err := os.ReadFile(ingestFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer a.close()

	attempt, err := a.orchestrator.Upload(ctx, ingest.Upload{
		TenantID:   ingestTenant,
		UploaderID: ingestUploader,
		FileName:   filepath.Base(ingestFile),
		Content:    content,
	})
	var dup *ingest.DuplicateError
	if errors.As(err, &dup) {
		return printJSON(cmd, dto.FromAttempt(attempt))
	}
	if err != nil {
		return err
	}
	if err := a.orchestrator.Process(ctx, attempt.ID); err != nil {
		lg.Warn("attempt failed", zap.String("attempt_id", attempt.ID), zap.Error(err))
	}

	done, err := a.db.GetAttempt(ctx, database.SystemScope(), attempt.ID)
	if err != nil {
		return err
	}
	return printJSON(cmd, dto.FromAttempt(done))
}

func runWatchdog(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Pipeline.Runner = string(cnst.RunnerInline)
	lg := initLogger(cfg)
	defer lg.Sync()

	a, err := newApp(context.Background(), cfg, lg)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.runner.Start(); err != nil {
		return err
	}

	n, err := a.watchdog.Sweep(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "failed %d stale attempts\n", n)
	return nil
}

func runToken(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Pipeline.Runner = string(cnst.RunnerInline)
	lg := initLogger(cfg)
	defer lg.Sync()

	a, err := newApp(context.Background(), cfg, lg)
	if err != nil {
		return err
	}
	defer a.close()

	u, err := a.db.GetUserByUsername(context.Background(), tokenUser)
	if err != nil {
		return fmt.Errorf("user %q: %w", tokenUser, err)
	}
	if !u.IsActive {
		return fmt.Errorf("user %q is not active", tokenUser)
	}
	tok, err := a.jwt.GenerateToken(u.ID, u.Username, u.IsElevated)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
