package types

// DefaultServer is the QCArchive address used as the key of collection entries.
const DefaultServer = "https://api.qcarchive.molssi.org:443/"

// CorpusConfig holds settings for the partitioned corpus.
type CorpusConfig struct {
	// Root is the corpus directory; partitions live at
	// Root/<specification>/<dataset>.parquet.
	Root string `json:"root" yaml:"root" mapstructure:"root"`
}

// NormalizeConfig holds settings for the normalization stage.
type NormalizeConfig struct {
	// InputDir holds raw collections laid out as <type>/<specification>/<dataset>.json.
	InputDir string `json:"input_dir" yaml:"input_dir" mapstructure:"input_dir"`

	// Server selects the entries key inside each collection. Empty reads
	// every server present, in sorted order.
	Server string `json:"server" yaml:"server" mapstructure:"server"`

	// LedgerPath is the SQLite ledger recording normalized inputs.
	LedgerPath string `json:"ledger_path" yaml:"ledger_path" mapstructure:"ledger_path"`
}

// QueryConfig holds settings for query planning and matching.
type QueryConfig struct {
	// CombinationsDir holds <name>.csv combination files.
	CombinationsDir string `json:"combinations_dir" yaml:"combinations_dir" mapstructure:"combinations_dir"`

	// OutputDir receives the report artifacts of a search.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// MatchTorsiondriveParents lets a combination's torsiondrive id admit
	// the grid points of that parent torsiondrive, in addition to rows whose
	// own (type, id) is listed. Off by default.
	MatchTorsiondriveParents bool `json:"match_torsiondrive_parents" yaml:"match_torsiondrive_parents" mapstructure:"match_torsiondrive_parents"`
}

// CommentConfig holds the regular expressions used to read search requests
// out of discussion comments and issue bodies. Each expression must have
// exactly one capture group.
type CommentConfig struct {
	Pattern     string `json:"pattern" yaml:"pattern" mapstructure:"pattern"`
	Dataset     string `json:"dataset" yaml:"dataset" mapstructure:"dataset"`
	Spec        string `json:"spec" yaml:"spec" mapstructure:"spec"`
	Type        string `json:"type" yaml:"type" mapstructure:"type"`
	Combination string `json:"combination" yaml:"combination" mapstructure:"combination"`
	IssueSMILES string `json:"issue_smiles" yaml:"issue_smiles" mapstructure:"issue_smiles"`
}

// ReportConfig holds settings for the search report payload.
type ReportConfig struct {
	// Command is the command name echoed in the report's query line.
	Command string `json:"command" yaml:"command" mapstructure:"command"`

	// ArtifactURL, when set, is linked from the Markdown summary. It may
	// contain %s for the run id.
	ArtifactURL string `json:"artifact_url,omitempty" yaml:"artifact_url,omitempty" mapstructure:"artifact_url"`
}

// LogConfig carries logger construction parameters.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console. Defaults to console.
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// OutputPaths lists zap sinks. Defaults to stderr.
	OutputPaths []string `json:"output_paths" yaml:"output_paths" mapstructure:"output_paths"`
}

// Config groups all stage configurations.
type Config struct {
	Corpus    CorpusConfig    `json:"corpus" yaml:"corpus" mapstructure:"corpus"`
	Normalize NormalizeConfig `json:"normalize" yaml:"normalize" mapstructure:"normalize"`
	Query     QueryConfig     `json:"query" yaml:"query" mapstructure:"query"`
	Comment   CommentConfig   `json:"comment" yaml:"comment" mapstructure:"comment"`
	Report    ReportConfig    `json:"report" yaml:"report" mapstructure:"report"`
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the configuration used when no file or flag
// overrides a value.
func DefaultConfig() Config {
	return Config{
		Corpus: CorpusConfig{Root: "tables"},
		Normalize: NormalizeConfig{
			InputDir:   "input",
			Server:     DefaultServer,
			LedgerPath: "tables/.ledger.db",
		},
		Query: QueryConfig{
			CombinationsDir: "combinations",
			OutputDir:       "output",
		},
		Comment: DefaultCommentConfig(),
		Report:  ReportConfig{Command: "botsearch"},
		Log:     LogConfig{Level: "info", Format: "console"},
	}
}

// DefaultCommentConfig returns the expressions accepted by the search bot.
func DefaultCommentConfig() CommentConfig {
	return CommentConfig{
		Pattern:     `(?i)-pattern\s+['"]*([0-9a-zA-Z,+()$:\-=#~\[\]@*!;&.%/\\]+)['"]*`,
		Dataset:     `-dataset\s+['"]*([\w-]+)['"]*`,
		Spec:        `-spec\s+['"]*([\w-]+)['"]*`,
		Type:        `-type\s+['"]*(\w+)['"]*`,
		Combination: `-combination\s+['"]*(\w+)['"]*`,
		IssueSMILES: `(?i)smiles: ([0-9a-zA-Z+#\[\]:!~\-=()$*@/\\%.]+)`,
	}
}
