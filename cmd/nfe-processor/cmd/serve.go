package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfe-processor/internal/server"
	"github.com/rezonia/nfe-processor/pkg/config"
	"github.com/rezonia/nfe-processor/pkg/logger"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for processing fiscal documents.

The API provides endpoints for:
  - POST /api/v1/process   - Parse, validate and analyze an XML document
  - POST /api/v1/validate  - Validate against SEFAZ rules
  - POST /api/v1/analyze   - Recalculate totals and report divergences
  - POST /api/v1/document  - Return the full document record
  - GET  /health           - Health check

Configuration can also come from NFE_ environment variables
(NFE_HTTP_ADDRESS, NFE_HTTP_DEBUG, NFE_LOG_LEVEL, ...); flags win.

Examples:
  # Start server on default port
  nfe-processor serve

  # Start on a custom port in debug mode
  nfe-processor serve --address :9090 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 0, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 0, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if serverAddr != "" {
		cfg.HTTP.Address = serverAddr
	}
	if serverDebug {
		cfg.HTTP.Debug = true
	}
	if readTimeout > 0 {
		cfg.HTTP.ReadTimeout = readTimeout
	}
	if writeTimeout > 0 {
		cfg.HTTP.WriteTimeout = writeTimeout
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.Log.Level,
	})

	srv := server.NewServer(&server.Config{
		Address:      cfg.HTTP.Address,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		Debug:        cfg.HTTP.Debug,
		Logger:       log,
	})

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		os.Exit(0)
	}()

	return srv.Run()
}
