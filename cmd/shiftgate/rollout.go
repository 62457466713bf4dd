package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shiftgate/shiftgate/pkg/api"
	"github.com/shiftgate/shiftgate/pkg/client"
	"github.com/shiftgate/shiftgate/pkg/types"
)

var rolloutCmd = &cobra.Command{
	Use:   "rollout",
	Short: "Manage rollout attempts",
}

func init() {
	rolloutCmd.PersistentFlags().String("server", "http://localhost:8085", "Engine address")

	rolloutCmd.AddCommand(rolloutStartCmd)
	rolloutCmd.AddCommand(rolloutStatusCmd)
	rolloutCmd.AddCommand(rolloutAbortCmd)
	rolloutCmd.AddCommand(rolloutListCmd)

	rolloutStartCmd.Flags().StringP("file", "f", "", "Rollout manifest to apply (required)")
	rolloutStartCmd.Flags().Bool("wait", false, "Block until the attempt reaches a terminal state")
	_ = rolloutStartCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(rolloutCmd)
}

// RolloutManifest is the YAML document accepted by `rollout start -f`
type RolloutManifest struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ManifestMetadata `yaml:"metadata"`
	Spec       RolloutSpec      `yaml:"spec"`
}

type ManifestMetadata struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment,omitempty"`
}

type RolloutSpec struct {
	Service           string `yaml:"service"`
	CandidateRevision string `yaml:"candidateRevision"`
	Strategy          string `yaml:"strategy"`

	InitialPercent         int `yaml:"initialPercent,omitempty"`
	IncrementPercent       int `yaml:"incrementPercent,omitempty"`
	InterStageDelaySeconds int `yaml:"interStageDelaySeconds,omitempty"`

	// Probe selects the checker kind ("http" or "tcp"); empty means http
	Probe string `yaml:"probe,omitempty"`

	Thresholds *ThresholdsSpec `yaml:"thresholds,omitempty"`
}

type ThresholdsSpec struct {
	MaxErrorRatePercent   float64 `yaml:"maxErrorRatePercent"`
	MaxAvgResponseTimeMs  float64 `yaml:"maxAvgResponseTimeMs"`
	MonitorWindowSeconds  int     `yaml:"monitorWindowSeconds"`
	SampleIntervalSeconds int     `yaml:"sampleIntervalSeconds"`
}

var rolloutStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a rollout from a manifest",
	Long: `Start a rollout described by a YAML manifest.

Examples:
  # Canary rollout of web:v2
  shiftgate rollout start -f rollout.yaml

  # Start and block until the attempt settles
  shiftgate rollout start -f rollout.yaml --wait`,
	RunE: runRolloutStart,
}

func runRolloutStart(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	server, _ := cmd.Flags().GetString("server")
	wait, _ := cmd.Flags().GetBool("wait")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}

	var manifest RolloutManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("failed to parse YAML: %v", err)
	}
	if manifest.Kind != "" && manifest.Kind != "Rollout" {
		return fmt.Errorf("unsupported resource kind: %s", manifest.Kind)
	}

	service := manifest.Spec.Service
	if service == "" {
		service = manifest.Metadata.Name
	}

	req := api.StartRolloutRequest{
		Service:                service,
		Environment:            manifest.Metadata.Environment,
		CandidateRevision:      manifest.Spec.CandidateRevision,
		Strategy:               manifest.Spec.Strategy,
		InitialPercent:         manifest.Spec.InitialPercent,
		IncrementPercent:       manifest.Spec.IncrementPercent,
		InterStageDelaySeconds: manifest.Spec.InterStageDelaySeconds,
		Probe:                  manifest.Spec.Probe,
	}
	if th := manifest.Spec.Thresholds; th != nil {
		req.Thresholds = &types.Thresholds{
			MaxErrorRatePercent:   th.MaxErrorRatePercent,
			MaxAvgResponseTimeMs:  th.MaxAvgResponseTimeMs,
			MonitorWindowSeconds:  th.MonitorWindowSeconds,
			SampleIntervalSeconds: th.SampleIntervalSeconds,
		}
	}

	c := client.New(server)
	id, err := c.StartRollout(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("failed to start rollout: %v", err)
	}

	fmt.Printf("✓ Rollout started: %s (%s → %s)\n", id, service, manifest.Spec.CandidateRevision)

	if !wait {
		fmt.Printf("  Track with: shiftgate rollout status %s\n", id)
		return nil
	}
	return waitForAttempt(cmd.Context(), c, id)
}

func waitForAttempt(ctx context.Context, c *client.Client, id string) error {
	for {
		attempt, running, err := c.GetRollout(ctx, id)
		if err != nil {
			return err
		}
		if !running && attempt.Status.Terminal() {
			printAttempt(attempt)
			if attempt.Status != types.AttemptSucceeded {
				return fmt.Errorf("rollout ended %s", attempt.Status)
			}
			return nil
		}

		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var rolloutStatusCmd = &cobra.Command{
	Use:   "status ID",
	Short: "Show the state of a rollout attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")

		attempt, running, err := client.New(server).GetRollout(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if running {
			fmt.Println("State: running")
		}
		printAttempt(attempt)
		return nil
	},
}

var rolloutAbortCmd = &cobra.Command{
	Use:   "abort ID",
	Short: "Abort a running rollout attempt",
	Long: `Abort a running rollout attempt.

If traffic has already shifted toward the candidate, the engine rolls
back to the stable revision before the attempt settles.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")

		if err := client.New(server).AbortRollout(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to abort: %v", err)
		}
		fmt.Printf("✓ Abort requested for %s\n", args[0])
		return nil
	},
}

var rolloutListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rollout attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")

		attempts, err := client.New(server).ListRollouts(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSERVICE\tSTRATEGY\tCANDIDATE\tSTATUS\tCREATED")
		for _, attempt := range attempts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				attempt.ID,
				attempt.Service,
				attempt.Strategy,
				attempt.CandidateRevision,
				attempt.Status,
				attempt.CreatedAt.Format(time.RFC3339),
			)
		}
		return w.Flush()
	},
}

func printAttempt(attempt *types.DeploymentAttempt) {
	fmt.Printf("Attempt: %s\n", attempt.ID)
	fmt.Printf("  Service:   %s (%s)\n", attempt.Service, attempt.Environment)
	fmt.Printf("  Strategy:  %s\n", attempt.Strategy)
	fmt.Printf("  Candidate: %s\n", attempt.CandidateRevision)
	if attempt.StableRevision != "" {
		fmt.Printf("  Stable:    %s\n", attempt.StableRevision)
	}
	fmt.Printf("  Status:    %s\n", attempt.Status)
	if attempt.FailureReason != "" {
		fmt.Printf("  Reason:    %s\n", attempt.FailureReason)
	}
	if attempt.ManualInterventionRequired {
		fmt.Println("  MANUAL INTERVENTION REQUIRED: traffic may not be on a healthy revision")
	}
	for i, stage := range attempt.Stages {
		marker := " "
		switch stage.Status {
		case types.StagePassed:
			marker = "✓"
		case types.StageFailed:
			marker = "✗"
		case types.StageActive:
			marker = "→"
		}
		fmt.Printf("  %s stage %d: %d%% (%s)\n", marker, i, stage.TargetPercent, stage.Status)
	}
	if v := attempt.LastVerdict; v != nil {
		fmt.Printf("  Last window: %.1f%% errors, %.0fms avg latency over %d samples\n",
			v.ErrorRatePercent, v.AvgLatencyMs, v.Samples)
	}
}
