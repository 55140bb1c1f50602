// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/qca-catalog/internal/query"
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Parse a discussion comment or issue body into a search request",
	Long: `Comment reads a comment (from --text, or stdin) and prints the search
arguments it requests, such as "--pattern '[#6:1]' --spec default".
With --issue it reads an issue body and prints only the SMILES it names.

The expressions used are configured under the comment section.`,
	RunE: runComment,
}

func init() {
	commentCmd.Flags().String("text", "", "comment text (default: read stdin)")
	commentCmd.Flags().Bool("issue", false, "parse an issue body for its SMILES")
	commentCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(commentCmd)
}

func runComment(cmd *cobra.Command, args []string) error {
	text, _ := cmd.Flags().GetString("text")
	if text == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	patterns, err := query.CompilePatterns(cfg.Comment)
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if issue, _ := cmd.Flags().GetBool("issue"); issue {
		smiles, err := query.ParseIssue(text, patterns)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(map[string]string{"smiles": smiles})
		}
		fmt.Println(smiles)
		return nil
	}

	req, err := query.ParseComment(text, patterns)
	if err != nil {
		return err
	}
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(req)
	}
	fmt.Println(shellJoin(req.Args()))
	return nil
}

// shellJoin quotes values so the line can be pasted into a shell. Flags
// are left bare.
func shellJoin(args []string) string {
	out := make([]string, len(args))
	for i, a := range args {
		if strings.HasPrefix(a, "--") {
			out[i] = a
			continue
		}
		out[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
	}
	return strings.Join(out, " ")
}
