package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solbatt/solbatt/config"
	"github.com/solbatt/solbatt/core/planner"
	"github.com/solbatt/solbatt/infra/inputs"
	"github.com/solbatt/solbatt/infra/logger"
)

var snapshotPath string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run a single planning pass and print the schedule as JSON",
	RunE:  planOnce,
}

func init() {
	planCmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "", "snapshot file (defaults to service.snapshot_path)")
	rootCmd.AddCommand(planCmd)
}

func planOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := snapshotPath
	if path == "" {
		path = cfg.Service.SnapshotPath
	}

	engine, err := planner.New(cfg.Planner, logger.New("planner"))
	if err != nil {
		return fmt.Errorf("planner: %w", err)
	}
	snap, err := inputs.NewFileProvider(path).Snapshot(context.Background())
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	plan, err := engine.GenerateSchedule(snap)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}
