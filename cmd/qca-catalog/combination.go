// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/qca-catalog/internal/query"
)

var combinationCmd = &cobra.Command{
	Use:   "combination",
	Short: "Build and inspect record combinations",
	Long: `A combination is a named CSV of (type, id) pairs under the combinations
directory. Searches restricted to a combination only consider its records.`,
}

var combinationBuildCmd = &cobra.Command{
	Use:   "build NAME",
	Short: "Build a combination from a fitting targets directory",
	Long: `Build collects torsiondrive ids from torsion-<id> directories and
optimization ids from opt-*/<id>-*.xyz files under the targets directory and
writes them as <combinations-dir>/NAME.csv.`,
	Args: cobra.ExactArgs(1),
	RunE: runCombinationBuild,
}

var combinationShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print the records of a combination",
	Args:  cobra.ExactArgs(1),
	RunE:  runCombinationShow,
}

func init() {
	combinationCmd.PersistentFlags().String("combinations-dir", "", "directory of <name>.csv combinations (default from config)")
	combinationBuildCmd.Flags().String("targets", "", "fitting targets directory (required)")
	combinationBuildCmd.MarkFlagRequired("targets")

	combinationCmd.AddCommand(combinationBuildCmd, combinationShowCmd)
	rootCmd.AddCommand(combinationCmd)
}

func runCombinationBuild(cmd *cobra.Command, args []string) error {
	targets, _ := cmd.Flags().GetString("targets")
	dir := flagOr(cmd, "combinations-dir", cfg.Query.CombinationsDir)

	refs, err := query.BuildCombination(targets)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating combinations directory: %w", err)
	}
	path := filepath.Join(dir, args[0]+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := query.WriteCombination(f, refs); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	okColor.Fprintf(os.Stderr, "Wrote %d records to %s\n", len(refs), path)
	return nil
}

func runCombinationShow(cmd *cobra.Command, args []string) error {
	dir := flagOr(cmd, "combinations-dir", cfg.Query.CombinationsDir)
	refs, err := query.DirResolver{Dir: dir}.Resolve(args[0])
	if err != nil {
		return err
	}
	return query.WriteCombination(os.Stdout, refs)
}
