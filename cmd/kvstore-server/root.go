package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kvstore/internal/config"
	"kvstore/internal/server"
	"kvstore/internal/store"
)

var version = "1.0.0" // Set during build with -ldflags

var rootCmd = &cobra.Command{
	Use:     "kvstore-server",
	Short:   "A networked, persistent, memory-mapped key-value store server",
	Version: version,
	RunE:    runServer,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadServerConfig(viper.GetViper())
		if err != nil {
			return err
		}
		fmt.Println("kvstore-server configuration:")
		fmt.Println(strings.Repeat("=", 31))
		fmt.Printf("Host: %s\n", cfg.Host)
		fmt.Printf("Port: %d\n", cfg.Port)
		fmt.Printf("File: %s\n", cfg.File)
		fmt.Printf("Segment Size: %d\n", cfg.SegmentSize)
		fmt.Printf("Lock Timeout: %v\n", cfg.LockTimeout)
		fmt.Printf("Data Timeout: %v\n", cfg.DataTimeout)
		fmt.Printf("Report Interval: %v\n", cfg.ReportInterval)
		fmt.Printf("Log Level: %s\n", cfg.LogLevel)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kvstore-server v%s\n", version)
		fmt.Printf("Built with Go %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServerConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("Starting kvstore-server v%s\n", version)
	fmt.Printf("Listening on %s:%d\n", cfg.Host, cfg.Port)
	fmt.Printf("Backing file: %s\n", cfg.File)
	fmt.Println(strings.Repeat("=", 51))

	m, err := store.Open(cfg.File, cfg.SegmentSize)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer m.Close()

	acceptor := server.NewAcceptor(cfg.Host, cfg.Port, m, cfg.LockTimeout, cfg.DataTimeout, cfg.ReportInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := acceptor.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case <-sigChan:
		fmt.Println("\nShutting down kvstore-server...")
	}

	acceptor.Stop()
	fmt.Println("kvstore-server stopped")
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringP("host", "H", "0.0.0.0", "Host to bind to")
	rootCmd.PersistentFlags().IntP("port", "p", 1524, "Port to listen on")
	rootCmd.PersistentFlags().String("file", "./memfile.map", "Path to the memory-mapped backing store")
	rootCmd.PersistentFlags().Int64("segment-size", 0, "Initial segment size in bytes (0 = default 5 MiB)")
	rootCmd.PersistentFlags().Duration("lock-timeout", 500*time.Millisecond, "Store lock acquisition timeout")
	rootCmd.PersistentFlags().Duration("data-timeout", 1000*time.Millisecond, "Timeout between a frame header and its body")
	rootCmd.PersistentFlags().Duration("report-interval", 60*time.Second, "Interval between periodic counter reports")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level")

	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("file", rootCmd.PersistentFlags().Lookup("file"))
	viper.BindPFlag("segment_size", rootCmd.PersistentFlags().Lookup("segment-size"))
	viper.BindPFlag("lock_timeout", rootCmd.PersistentFlags().Lookup("lock-timeout"))
	viper.BindPFlag("data_timeout", rootCmd.PersistentFlags().Lookup("data-timeout"))
	viper.BindPFlag("report_interval", rootCmd.PersistentFlags().Lookup("report-interval"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
