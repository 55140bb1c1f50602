// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report assembles the payload of a search and writes it as the
// artifacts consumed by external reporting.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/qca-catalog/internal/match"
	"github.com/pdiddy/qca-catalog/pkg/types"
)

// Artifact file names.
const (
	RowsFile     = "matching_molecules.csv"
	YAMLFile     = "summary.yaml"
	JSONFile     = "summary.json"
	MarkdownFile = "summary.md"
)

// Payload is everything the reporting collaborator needs about one search.
type Payload struct {
	RunID             string             `json:"run_id" yaml:"run_id"`
	Query             string             `json:"query" yaml:"query"`
	Pattern           string             `json:"pattern" yaml:"pattern"`
	Outcome           match.Outcome      `json:"outcome" yaml:"outcome"`
	MatchedIdentities int                `json:"matched_identities" yaml:"matched_identities"`
	MatchedRows       int                `json:"matched_rows" yaml:"matched_rows"`
	Datasets          int                `json:"datasets" yaml:"datasets"`
	Counts            []match.GroupCount `json:"counts" yaml:"counts"`
	Identities        []string           `json:"identities" yaml:"identities"`
	ArtifactURL       string             `json:"artifact_url,omitempty" yaml:"artifact_url,omitempty"`
	GeneratedAt       time.Time          `json:"generated_at" yaml:"generated_at"`

	rows []types.Row
}

// NewPayload builds the payload of res. An empty runID gets a random one.
// query is the command line echoed in the summary.
func NewPayload(runID, query string, res *match.Result, cfg types.ReportConfig) *Payload {
	if runID == "" {
		runID = uuid.NewString()
	}
	p := &Payload{
		RunID:             runID,
		Query:             query,
		Pattern:           res.Pattern,
		Outcome:           res.Outcome,
		MatchedIdentities: len(res.Identities),
		MatchedRows:       len(res.Rows),
		Datasets:          res.Datasets(),
		Counts:            match.GroupCounts(res.Rows),
		Identities:        res.Identities,
		GeneratedAt:       time.Now().UTC(),
		rows:              res.Rows,
	}
	if cfg.ArtifactURL != "" {
		if strings.Contains(cfg.ArtifactURL, "%s") {
			p.ArtifactURL = fmt.Sprintf(cfg.ArtifactURL, runID)
		} else {
			p.ArtifactURL = cfg.ArtifactURL
		}
	}
	return p
}

// Rows returns the matched rows.
func (p *Payload) Rows() []types.Row { return p.rows }

var rowsHeader = []string{
	"type", "qcarchive_id", "cmiles", "inchi_key", "smiles", "dataset",
	"specification", "torsiondrive_id", "dihedral_indices", "grid_id",
}

func formatInts(v []int64) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.FormatInt(n, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// RowsCSV renders the matched rows with the corpus column names.
func (p *Payload) RowsCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(rowsHeader); err != nil {
		return nil, err
	}
	for _, r := range p.rows {
		rec := []string{
			string(r.RecordType),
			strconv.FormatInt(r.RecordID, 10),
			r.RawIdentifier,
			r.StructureKey,
			r.CanonicalIdentity,
			r.Dataset,
			r.Specification,
			strconv.FormatInt(r.TorsiondriveID, 10),
			formatInts(r.DihedralIndices),
			formatInts(r.GridID),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

var summaryTmpl = template.Must(template.New("summary").Parse(`# SMILES matches
## Query:
` + "```" + `
{{ .Query }}
` + "```" + `
{{ if eq .Outcome "no_matches" }}
No matches found
{{ else }}
Unique matches: {{ .MatchedIdentities }}
Matching conformers: {{ .MatchedRows }}
Number of datasets: {{ .Datasets }}

## Counts

<details>

<summary>Click to expand for counts</summary>

| type | dataset | specification | # conformers |
|:-----|:--------|:--------------|-------------:|
{{ range .Counts }}| {{ .Type }} | {{ .Dataset }} | {{ .Specification }} | {{ .Conformers }} |
{{ end }}
</details>
{{ if .ArtifactURL }}
## Artifacts

See the artifacts at the [run page]({{ .ArtifactURL }}).
{{ end }}{{ end }}`))

// Markdown renders the human-readable summary.
func (p *Payload) Markdown() (string, error) {
	var buf bytes.Buffer
	if err := summaryTmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("rendering summary: %w", err)
	}
	return buf.String(), nil
}

// Write writes the artifacts into dir. The rows file is written only when
// something matched.
func (p *Payload) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	files := map[string]func() ([]byte, error){
		YAMLFile: func() ([]byte, error) { return yaml.Marshal(p) },
		JSONFile: func() ([]byte, error) { return json.MarshalIndent(p, "", "  ") },
		MarkdownFile: func() ([]byte, error) {
			md, err := p.Markdown()
			return []byte(md), err
		},
	}
	if p.Outcome == match.Matched {
		files[RowsFile] = p.RowsCSV
	}

	for name, render := range files {
		data, err := render()
		if err != nil {
			return fmt.Errorf("rendering %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

// ReadPayload loads a payload written by Write. Rows are not restored.
func ReadPayload(dir string) (*Payload, error) {
	data, err := os.ReadFile(filepath.Join(dir, JSONFile))
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	return &p, nil
}
