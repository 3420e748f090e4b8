package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/gl-mapper/internal/config"
	infraBQ "github.com/dvloznov/gl-mapper/internal/infra/bigquery"
	"github.com/dvloznov/gl-mapper/internal/ingest"
	"github.com/dvloznov/gl-mapper/internal/issuelog"
	"github.com/dvloznov/gl-mapper/internal/logger"
	"github.com/dvloznov/gl-mapper/internal/mapping"
	"github.com/dvloznov/gl-mapper/internal/notionsync"
	"github.com/dvloznov/gl-mapper/internal/pipeline"
	"github.com/dvloznov/gl-mapper/internal/schema"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "propose":
		err = runPropose(os.Args[2:])
	case "transform":
		err = runTransform(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "schema":
		err = runSchema(os.Args[2:])
	case "runs":
		err = runRuns(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("General Ledger Mapper CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  propose    Propose a mapping from an input file's columns to the target schema")
	fmt.Println("  transform  Map, normalize and validate an input file and write the result")
	fmt.Println("  validate   Check an already normalized file against the target schema")
	fmt.Println("  schema     Print the target schema")
	fmt.Println("  runs       List recent transformation runs recorded in BigQuery")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// env is what every command starts from: configuration, a session logger and
// the target schema.
type env struct {
	cfg    *config.AppConfig
	log    zerolog.Logger
	schema *schema.TargetSchema
	closer io.Closer
}

func (e *env) Close() error {
	return e.closer.Close()
}

// commonFlags registers -config and -schema on fs.
func commonFlags(fs *flag.FlagSet) (configPath, schemaPath *string) {
	configPath = fs.String("config", "", "Path to config.toml (default: ./config.toml if present)")
	schemaPath = fs.String("schema", "", "Target schema definition (overrides config and GL_SCHEMA_PATH)")
	return
}

// setup loads configuration, opens the session log and reads the schema.
// With needLLM the model credential is checked before anything else is read.
func setup(configPath, schemaPath string, needLLM bool) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if schemaPath != "" {
		cfg.Schema.Path = schemaPath
	}
	if needLLM {
		if err := cfg.RequireLLM(); err != nil {
			return nil, err
		}
	}

	log, closer, err := logger.NewSession(logger.SessionConfig{
		Level: cfg.Logging.Level,
		Dir:   cfg.Logging.Dir,
	})
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	s, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &env{cfg: cfg, log: log, schema: s, closer: closer}, nil
}

func newProposer(ctx context.Context, cfg *config.AppConfig) (*mapping.Proposer, error) {
	model, err := mapping.NewGeminiModel(ctx, mapping.GeminiConfig{
		APIKey:    cfg.LLM.APIKey,
		UseVertex: cfg.LLM.UseVertex,
		Project:   cfg.LLM.Project,
		Location:  cfg.LLM.Location,
		ModelName: cfg.LLM.Model,
	})
	if err != nil {
		return nil, err
	}
	return mapping.NewProposer(model), nil
}

func runPropose(args []string) error {
	fs := flag.NewFlagSet("propose", flag.ExitOnError)
	configPath, schemaPath := commonFlags(fs)
	input := fs.String("input", "", "Input CSV/XLSX file (local path or gs://bucket/object)")
	saveMapping := fs.String("save-mapping", "", "Write the proposed mapping to this JSON file")
	fs.Parse(args)

	if *input == "" {
		return fmt.Errorf("--input is required")
	}

	e, err := setup(*configPath, *schemaPath, true)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, e.log)

	res, err := ingest.NewLoader().Load(ctx, *input)
	if err != nil {
		return err
	}

	proposer, err := newProposer(ctx, e.cfg)
	if err != nil {
		return err
	}
	columns := res.Table.ColumnNames()
	candidates, err := proposer.Propose(ctx, columns, e.schema)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(map[string]interface{}{
		"input_columns": columns,
		"candidates":    candidates,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if *saveMapping != "" {
		if err := writeMappingFile(*saveMapping, mapping.FromCandidates(candidates)); err != nil {
			return err
		}
		fmt.Printf("Mapping written to %s\n", *saveMapping)
	}
	return nil
}

func runTransform(args []string) error {
	fs := flag.NewFlagSet("transform", flag.ExitOnError)
	configPath, schemaPath := commonFlags(fs)
	input := fs.String("input", "", "Input CSV/XLSX file (local path or gs://bucket/object)")
	output := fs.String("output", "", "Output path or gs:// URI (default from config)")
	mappingPath := fs.String("mapping", "", "Approved mapping JSON file; skips the model")
	saveMapping := fs.String("save-mapping", "", "Write the approved mapping to this JSON file")
	interactive := fs.Bool("interactive", false, "Review each proposed target on stdin")
	exportBQ := fs.Bool("export-bq", false, "Load the normalized rows into BigQuery")
	publishNotion := fs.Bool("notion", false, "Publish the run summary to Notion")
	dryRun := fs.Bool("dry-run", false, "With -notion, log the summary instead of writing it")
	fs.Parse(args)

	if *input == "" {
		return fmt.Errorf("--input is required")
	}

	var approved *mapping.ApprovedMapping
	if *mappingPath != "" {
		m, err := readMappingFile(*mappingPath)
		if err != nil {
			return err
		}
		approved = m
	}

	e, err := setup(*configPath, *schemaPath, approved == nil)
	if err != nil {
		return err
	}
	defer e.Close()

	if *exportBQ && !e.cfg.BigQueryEnabled() {
		return &config.ConfigurationError{Field: "bigquery.dataset", Reason: "BQ_PROJECT and BQ_DATASET are required for -export-bq"}
	}
	if *publishNotion && !e.cfg.NotionEnabled() {
		return &config.ConfigurationError{Field: "notion.token", Reason: "NOTION_TOKEN and NOTION_DATABASE_ID are required for -notion"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, e.log)

	loader := ingest.NewLoader()
	session := &pipeline.Session{
		Schema:      e.schema,
		SchemaPath:  e.cfg.Schema.Path,
		ModelName:   e.cfg.LLM.Model,
		Source:      loader,
		Sink:        loader,
		Issues:      issuelog.New(e.cfg.Output.IssueLog),
		ExportTable: e.cfg.BigQuery.ExportTable,
		Log:         e.log,
	}

	if approved == nil {
		proposer, err := newProposer(ctx, e.cfg)
		if err != nil {
			return err
		}
		session.Proposer = proposer
		if *interactive {
			session.Approve = reviewApprover(os.Stdin, os.Stdout, e.schema)
		}
	}

	if e.cfg.BigQueryEnabled() {
		repo, err := infraBQ.NewBigQueryRepository(ctx, infraBQ.Dataset{
			ProjectID: e.cfg.BigQuery.Project,
			DatasetID: e.cfg.BigQuery.Dataset,
		})
		if err != nil {
			return err
		}
		defer repo.Close()
		session.Runs = repo
		if *exportBQ {
			session.Warehouse = repo
		}
	}

	outPath := *output
	if outPath == "" {
		outPath = e.cfg.Output.Path
	}

	state, err := session.Run(ctx, pipeline.Request{
		Source:     *input,
		OutputPath: outPath,
		Approved:   approved,
	})
	if err != nil {
		return err
	}

	if *saveMapping != "" {
		if err := writeMappingFile(*saveMapping, state.Approved); err != nil {
			return err
		}
	}

	printReport(os.Stdout, state)

	if *publishNotion {
		summary := notionsync.NewRunSummary(state, time.Now())
		client := notionsync.NewNotionClient(e.cfg.Notion.Token)
		pageID, err := notionsync.PublishRunSummary(ctx, client, e.cfg.Notion.DatabaseID, summary, *dryRun)
		if err != nil {
			return err
		}
		if pageID != "" && !*dryRun {
			fmt.Printf("Run summary published to Notion page %s\n", pageID)
		}
	}
	return nil
}

// printReport writes the run summary for the terminal.
func printReport(w io.Writer, state *pipeline.PipelineState) {
	fmt.Fprintf(w, "\n=== Transformation %s ===\n", state.RunID)
	fmt.Fprintf(w, "Rows:   %d\n", state.Summary.Rows)
	if state.OutputPath != "" {
		fmt.Fprintf(w, "Output: %s\n", state.OutputPath)
	}

	fmt.Fprintln(w, "\nMapped fields:")
	if len(state.Summary.Mapped) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, m := range state.Summary.Mapped {
		fmt.Fprintf(w, "  %s -> %s\n", m.InputField, m.Target)
	}

	if len(state.Summary.Unmapped) > 0 {
		fmt.Fprintf(w, "\nUnmapped input columns: %s\n", strings.Join(state.Summary.Unmapped, ", "))
	}
	if len(state.Summary.EmptyTargets) > 0 {
		fmt.Fprintf(w, "Target fields with no data: %s\n", strings.Join(state.Summary.EmptyTargets, ", "))
	}

	if len(state.Diagnostics.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warn := range state.Diagnostics.Warnings {
			fmt.Fprintf(w, "  %s\n", warn.Message)
		}
	}

	if len(state.Issues) == 0 {
		fmt.Fprintln(w, "\nValidation passed.")
		return
	}
	fmt.Fprintln(w, "\nValidation issues:")
	for _, issue := range state.Issues {
		fmt.Fprintf(w, "  %s\n", issue)
	}
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath, schemaPath := commonFlags(fs)
	input := fs.String("input", "", "Normalized CSV/XLSX file to validate")
	logIssues := fs.Bool("log-issues", true, "Append issues to the issue log")
	fs.Parse(args)

	if *input == "" {
		return fmt.Errorf("--input is required")
	}

	e, err := setup(*configPath, *schemaPath, false)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := logger.WithContext(context.Background(), e.log)

	res, err := ingest.NewLoader().Load(ctx, *input)
	if err != nil {
		return err
	}

	issues := pipeline.Validate(res.Table, e.schema)
	if *logIssues {
		if err := issuelog.Append(issues, e.cfg.Output.IssueLog); err != nil {
			return err
		}
	}

	if len(issues) == 0 {
		fmt.Println("Validation passed.")
		return nil
	}
	for _, issue := range issues {
		fmt.Println(issue)
	}
	return errValidationFailed
}

var errValidationFailed = errors.New("validation failed")

func runSchema(args []string) error {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	configPath, schemaPath := commonFlags(fs)
	fs.Parse(args)

	e, err := setup(*configPath, *schemaPath, false)
	if err != nil {
		return err
	}
	defer e.Close()

	out, err := json.MarshalIndent(e.schema, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath, _ := commonFlags(fs)
	limit := fs.Int("limit", 20, "Number of runs to show")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if !cfg.BigQueryEnabled() {
		return &config.ConfigurationError{Field: "bigquery.dataset", Reason: "BQ_PROJECT and BQ_DATASET are required"}
	}

	ctx := logger.WithContext(context.Background(), logger.New())
	repo, err := infraBQ.NewBigQueryRepository(ctx, infraBQ.Dataset{
		ProjectID: cfg.BigQuery.Project,
		DatasetID: cfg.BigQuery.Dataset,
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	runs, err := repo.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}

	fmt.Printf("%-36s  %-8s  %-20s  %6s  %6s  %s\n", "RUN ID", "STATUS", "STARTED", "ROWS", "ISSUES", "SOURCE")
	for _, r := range runs {
		rows, issues := "-", "-"
		if r.InputRows.Valid {
			rows = fmt.Sprint(r.InputRows.Int64)
		}
		if r.IssueCount.Valid {
			issues = fmt.Sprint(r.IssueCount.Int64)
		}
		fmt.Printf("%-36s  %-8s  %-20s  %6s  %6s  %s\n",
			r.RunID, r.Status, r.StartedTS.UTC().Format("2006-01-02 15:04:05"), rows, issues, r.Source)
	}
	return nil
}
