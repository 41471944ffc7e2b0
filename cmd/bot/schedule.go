package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liftcare/field-bot/internal/config"
	"github.com/liftcare/field-bot/internal/db"
	"github.com/liftcare/field-bot/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Maintenance schedule commands",
}

var scheduleImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Replace the maintenance schedule from a YAML document",
	Long: `Reads a document mapping address keys to planned dates and replaces the
stored schedule with it:

  "вул. Лазурна 32 (під. 1-3)":
    - 2025-03-14
    - 2025-04-11

A running service picks the new schedule up on its next start.`,
	Args: cobra.ExactArgs(1),
	RunE: runScheduleImport,
}

func init() {
	scheduleCmd.AddCommand(scheduleImportCmd)
}

func runScheduleImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOffline()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := schedule.ParseFile(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	database, err := db.New(cfg.DBPath, cfg.Location)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.ReplaceSchedule(rows); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d schedule dates\n", len(rows))
	return nil
}
