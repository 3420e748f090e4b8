// Package config loads gl-mapper settings from config.toml and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.toml"

// AppConfig is the full application configuration.
type AppConfig struct {
	Schema   SchemaConfig   `toml:"schema"`
	LLM      LLMConfig      `toml:"llm"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	Output   OutputConfig   `toml:"output"`
	GCS      GCSConfig      `toml:"gcs"`
	BigQuery BigQueryConfig `toml:"bigquery"`
	Notion   NotionConfig   `toml:"notion"`
}

// SchemaConfig locates the target schema definition.
type SchemaConfig struct {
	Path string `toml:"path"`
}

// LLMConfig selects the Gemini backend used for mapping proposals.
type LLMConfig struct {
	Model     string `toml:"model"`
	APIKey    string `toml:"api_key"`
	UseVertex bool   `toml:"use_vertex"`
	Project   string `toml:"project"`
	Location  string `toml:"location"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int    `toml:"port"`
	CORSOrigins string `toml:"cors_origins"`
	Workers     int    `toml:"workers"`
	// DataRoot is the only local directory API requests may read from.
	// Empty allows gs:// sources in the GCS bucket only.
	DataRoot string `toml:"data_root"`
	// OutputDir receives <run_id>.csv for each API transformation.
	OutputDir string `toml:"output_dir"`
}

// LoggingConfig configures session logs.
type LoggingConfig struct {
	Level string `toml:"level"`
	Dir   string `toml:"dir"`
}

// OutputConfig holds default destinations.
type OutputConfig struct {
	Path     string `toml:"path"`
	IssueLog string `toml:"issue_log"`
}

// GCSConfig holds the bucket used for exports from the API.
type GCSConfig struct {
	Bucket string `toml:"bucket"`
}

// BigQueryConfig enables run auditing and warehouse export when set.
type BigQueryConfig struct {
	Project     string `toml:"project"`
	Dataset     string `toml:"dataset"`
	ExportTable string `toml:"export_table"`
}

// NotionConfig enables publishing run summaries when set.
type NotionConfig struct {
	Token      string `toml:"token"`
	DatabaseID string `toml:"database_id"`
}

// ConfigurationError reports missing or invalid settings. It is raised at
// startup, before any input is read.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Schema: SchemaConfig{
			Path: "target_schema.json",
		},
		LLM: LLMConfig{
			Model:    "gemini-2.5-flash",
			Location: "us-central1",
		},
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: "*",
			Workers:     2,
			OutputDir:   "output/runs",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "logs",
		},
		Output: OutputConfig{
			Path:     "output/transformed_general_ledger.csv",
			IssueLog: "logs/issues.log",
		},
		BigQuery: BigQueryConfig{
			ExportTable: "normalized_ledger",
		},
	}
}

// Load reads path (DefaultPath when empty) over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*AppConfig, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*AppConfig, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, &ConfigurationError{Field: path, Reason: "cannot read config file", Err: err}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigurationError{Field: path, Reason: "invalid TOML", Err: err}
		}
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig, getenv func(string) string) error {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&cfg.LLM.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	setString(&cfg.LLM.Project, "GOOGLE_CLOUD_PROJECT")
	setString(&cfg.LLM.Location, "GOOGLE_CLOUD_LOCATION")
	setString(&cfg.LLM.Model, "GL_MODEL")
	setString(&cfg.Schema.Path, "GL_SCHEMA_PATH")
	setString(&cfg.Logging.Level, "GL_LOG_LEVEL")
	setString(&cfg.GCS.Bucket, "GCS_BUCKET")
	setString(&cfg.Server.DataRoot, "GL_DATA_ROOT")
	setString(&cfg.Server.OutputDir, "GL_OUTPUT_DIR")
	setString(&cfg.BigQuery.Project, "BQ_PROJECT")
	setString(&cfg.BigQuery.Dataset, "BQ_DATASET")
	setString(&cfg.Notion.Token, "NOTION_TOKEN")
	setString(&cfg.Notion.DatabaseID, "NOTION_DATABASE_ID")

	if v := strings.TrimSpace(getenv("GOOGLE_GENAI_USE_VERTEXAI")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigurationError{Field: "GOOGLE_GENAI_USE_VERTEXAI", Reason: "not a boolean", Err: err}
		}
		cfg.LLM.UseVertex = b
	}

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigurationError{Field: "PORT", Reason: "not a number", Err: err}
		}
		cfg.Server.Port = port
	}

	// BigQuery falls back to the Google Cloud project.
	if cfg.BigQuery.Project == "" {
		cfg.BigQuery.Project = cfg.LLM.Project
	}
	return nil
}

// RequireLLM checks that a model credential is configured.
func (c *AppConfig) RequireLLM() error {
	if c.LLM.UseVertex {
		if c.LLM.Project == "" {
			return &ConfigurationError{Field: "llm.project", Reason: "GOOGLE_CLOUD_PROJECT is required when using Vertex AI"}
		}
		if c.LLM.Location == "" {
			return &ConfigurationError{Field: "llm.location", Reason: "GOOGLE_CLOUD_LOCATION is required when using Vertex AI"}
		}
		return nil
	}
	if c.LLM.APIKey == "" {
		return &ConfigurationError{Field: "llm.api_key", Reason: "GEMINI_API_KEY is not set"}
	}
	return nil
}

// BigQueryEnabled reports whether run auditing and export are configured.
func (c *AppConfig) BigQueryEnabled() bool {
	return c.BigQuery.Project != "" && c.BigQuery.Dataset != ""
}

// NotionEnabled reports whether run summaries can be published.
func (c *AppConfig) NotionEnabled() bool {
	return c.Notion.Token != "" && c.Notion.DatabaseID != ""
}
