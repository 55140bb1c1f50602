// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/qca-catalog/internal/catalog"
	"github.com/pdiddy/qca-catalog/internal/corpus"
	"github.com/pdiddy/qca-catalog/internal/identity"
	"github.com/pdiddy/qca-catalog/internal/normalize"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [collection.json...]",
	Short: "Normalize downloaded collections into corpus partitions",
	Long: `Normalize reads raw collection files laid out as
<type>/<specification>/<dataset>.json under the input directory and writes
one Parquet partition per specification and dataset into the corpus.

Files whose modification time matches the ledger and whose partition exists
are skipped; --force rewrites them. --pending limits the run to inputs with
no partition yet. --list prints the selected inputs as a JSON matrix instead
of normalizing them.`,
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().String("input-dir", "", "directory of raw collections (default from config)")
	normalizeCmd.Flags().String("tables", "", "corpus directory (default from config)")
	normalizeCmd.Flags().String("ledger", "", "SQLite ledger path (default from config)")
	normalizeCmd.Flags().String("server", "", "archive server key inside each collection (default from config)")
	normalizeCmd.Flags().Bool("all-servers", false, "read every server present in each collection")
	normalizeCmd.Flags().Bool("pending", false, "only inputs whose partition does not exist")
	normalizeCmd.Flags().Bool("force", false, "rewrite partitions even when the input is unchanged")
	normalizeCmd.Flags().Bool("list", false, "print the selected inputs as a JSON matrix and exit")

	rootCmd.AddCommand(normalizeCmd)
}

type matrixEntry struct {
	File string `json:"file"`
}

func runNormalize(cmd *cobra.Command, args []string) error {
	inputDir := flagOr(cmd, "input-dir", cfg.Normalize.InputDir)
	tables := flagOr(cmd, "tables", cfg.Corpus.Root)
	ledgerPath := flagOr(cmd, "ledger", cfg.Normalize.LedgerPath)
	server := flagOr(cmd, "server", cfg.Normalize.Server)
	if all, _ := cmd.Flags().GetBool("all-servers"); all {
		server = ""
	}
	pending, _ := cmd.Flags().GetBool("pending")
	force, _ := cmd.Flags().GetBool("force")
	list, _ := cmd.Flags().GetBool("list")

	c := corpus.Open(tables, logger)

	files, err := selectInputs(c, inputDir, args, pending)
	if err != nil {
		return err
	}

	if list {
		matrix := make([]matrixEntry, 0, len(files))
		for _, f := range files {
			matrix = append(matrix, matrixEntry{File: f.Path})
		}
		return json.NewEncoder(os.Stdout).Encode(matrix)
	}

	if len(files) == 0 {
		warnColor.Fprintln(os.Stderr, "No collections to normalize.")
		return nil
	}

	ledger, err := catalog.OpenLedger(ledgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	norm := normalize.New(identity.NewCanonicalizer(), logger, server)
	cat := catalog.New(ledger, c, norm, logger)

	summary, err := cat.Ingest(cmd.Context(), os.Stdout, files, force)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d collection(s) failed normalization", summary.Failed)
	}
	okColor.Fprintf(os.Stderr, "Normalized %d collection(s), %d rows (run %s)\n",
		summary.Indexed+summary.Updated, summary.Rows, summary.RunID)
	return nil
}

// selectInputs resolves explicit paths, or discovers inputs under inputDir.
func selectInputs(c *corpus.Corpus, inputDir string, paths []string, pending bool) ([]types.InputFile, error) {
	if len(paths) > 0 {
		files := make([]types.InputFile, 0, len(paths))
		for _, p := range paths {
			in, err := types.ParseInputPath(p)
			if err != nil {
				return nil, err
			}
			files = append(files, in)
		}
		return files, nil
	}
	if pending {
		return c.Pending(inputDir)
	}
	return corpus.Inputs(inputDir)
}
