package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shiftgate/shiftgate/pkg/api"
	"github.com/shiftgate/shiftgate/pkg/controller"
	"github.com/shiftgate/shiftgate/pkg/events"
	"github.com/shiftgate/shiftgate/pkg/log"
	"github.com/shiftgate/shiftgate/pkg/metrics"
	"github.com/shiftgate/shiftgate/pkg/record"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rollout engine",
	Long: `Run the rollout engine and its HTTP API.

The engine talks to the deployment platform given by --platform,
persists attempt records under --data-dir and serves the control API
on --listen.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", ":8085", "Address for the HTTP API")
	serveCmd.Flags().String("platform", "", "Base URL of the deployment platform API (required)")
	serveCmd.Flags().String("data-dir", "./shiftgate-data", "Directory for attempt records")
	serveCmd.Flags().String("log-level", "info", "Log level (debug|info|warn|error)")
	serveCmd.Flags().Bool("log-json", false, "Emit JSON logs instead of console output")
	_ = serveCmd.MarkFlagRequired("platform")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	listen, _ := cmd.Flags().GetString("listen")
	platform, _ := cmd.Flags().GetString("platform")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
	metrics.SetVersion(Version)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %v", err)
	}

	store, err := record.NewBoltStore(dataDir)
	if err != nil {
		metrics.RegisterComponent("record_store", false, err.Error())
		return fmt.Errorf("failed to open record store: %v", err)
	}
	defer store.Close()
	metrics.RegisterComponent("record_store", true, "")

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	// Tail lifecycle events into the serve log
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	go func() {
		eventLog := log.WithComponent("events")
		for event := range sub {
			eventLog.Info().
				Str("attempt_id", event.AttemptID).
				Str("type", string(event.Type)).
				Msg(event.Message)
		}
	}()

	engine := controller.NewEngine(platform, store, broker)
	metrics.RegisterComponent("engine", true, "")

	server := api.NewServer(engine, broker)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(listen); err != nil {
			errCh <- fmt.Errorf("API server error: %v", err)
		}
	}()

	fmt.Printf("Engine is running on %s (platform: %s). Press Ctrl+C to stop.\n", listen, platform)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}

	// Aborted attempts still need time to roll back before the process
	// exits
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := engine.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %v", err)
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}
