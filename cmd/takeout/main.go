// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/takeout"
	"github.com/poiesic/takeout/config"
	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/ingestion"
	"github.com/poiesic/takeout/parser"
	"github.com/poiesic/takeout/progress"
	"github.com/poiesic/takeout/reembed"
	"github.com/poiesic/takeout/search"
	"github.com/pterm/pterm"
	slogmulti "github.com/samber/slog-multi"
	"github.com/urfave/cli/v2"
)

const logFileKey = "log-file"

func main() {
	// A missing .env is fine
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "takeout",
		Usage: "Load personal-data exports into a searchable document database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write logs to this file",
			},
			&cli.StringFlag{
				Name:    "home",
				Usage:   "Data directory holding the database and config",
				EnvVars: []string{config.HomeEnv},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the config file (default: <home>/config.yaml)",
			},
		},
		Before: setupLogger,
		After:  closeLogFile,
		Commands: []*cli.Command{
			{
				Name:   "list-ingestors",
				Usage:  "List the available ingestors and the formats they read",
				Action: listIngestorsCommand,
			},
			{
				Name:      "ingest",
				Usage:     "Ingest an export file into the document table",
				ArgsUsage: "<source>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Source format (auto, json, text)",
						Value:   string(parser.FormatAuto),
					},
					&cli.BoolFlag{
						Name:  "validate",
						Usage: "Only validate and parse the source, store nothing",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to store in each batch (default from config)",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Continue from the last checkpoint of this source",
					},
					&cli.BoolFlag{
						Name:  "no-index",
						Usage: "Skip building the embedding index",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the summary as JSON",
					},
				},
			},
			{
				Name:   "setup",
				Usage:  "Create the document table and write the default config",
				Action: setupCommand,
			},
			{
				Name:   "status",
				Usage:  "Show the document tables and recent ingestion runs",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "runs",
						Usage: "Number of recent runs to show",
						Value: 5,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search ingested documents by meaning",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of documents to return",
						Value:   5,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Minimum similarity score of a match",
						Value: search.DefaultMinSimilarity,
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Show intermediate search steps",
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the embedding index of every document",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to process in each batch",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for each batch",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.DurationFlag{
						Name:  "max-retry-delay",
						Usage: "Upper bound of the backoff delay",
						Value: 30 * time.Second,
					},
				},
			},
		},
	}
}

func listIngestorsCommand(c *cli.Context) error {
	data := pterm.TableData{{"Name", "Formats", "Extensions", "Description"}}
	for _, d := range parser.Available() {
		formats := make([]string, len(d.Formats))
		for i, f := range d.Formats {
			formats[i] = string(f)
		}
		data = append(data, []string{d.Name, strings.Join(formats, ", "), strings.Join(d.Extensions, " "), d.Description})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("ingest requires exactly one source path")
	}
	source := c.Args().First()

	sourceParser, err := parser.ForFormat(c.String("type"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("no-index") {
		cfg.Index.Enabled = false
	}
	if c.IsSet("batch-size") {
		cfg.BatchSize = c.Int("batch-size")
	}

	// Validation stores nothing, so it runs against a scratch store and never
	// contends for the database lock or needs embedding credentials.
	var dbOpts []takeout.DatabaseOption
	if c.Bool("validate") {
		cfg.Index.Enabled = false
		dbOpts = append(dbOpts, takeout.WithInMemory())
	}

	db, err := takeout.Open(cfg, dbOpts...)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := db.NewIngestionPipeline(sourceParser, ingestion.WithObserver(printProgress))
	if err != nil {
		return err
	}

	summary, ingestErr := pipeline.Ingest(ctx, source, &ingestion.IngestOptions{
		Resume:       c.Bool("resume"),
		ValidateOnly: c.Bool("validate"),
	})
	if err := pipeline.Cleanup(); err != nil {
		slog.Warn("cleanup failed", "err", err)
	}

	if ingestErr != nil {
		if errors.Is(ingestErr, ingestion.ErrCancelled) {
			if snap := pipeline.Progress(); snap != nil {
				pterm.Warning.Printfln("Ingestion cancelled after %d records (%d failed). Rerun with --resume to continue.",
					snap.ProcessedItems+snap.FailedItems, snap.FailedItems)
			}
		}
		return ingestErr
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	printSummary(summary)
	return nil
}

func printProgress(snap progress.Snapshot) {
	if snap.Status != progress.Running {
		return
	}
	pterm.Info.Printfln("%d/%d records (%.1f%%), %d failed",
		snap.ProcessedItems+snap.FailedItems, snap.TotalItems, snap.CompletionPercentage, snap.FailedItems)
}

func printSummary(summary *ingestion.Summary) {
	if summary.Validation != nil {
		pterm.Success.Printfln("%s is valid: %d records", summary.Source, summary.Validation.RecordCount)
		if sample := summary.Validation.SampleRecord; sample != nil {
			pterm.Printfln("First record: %s", pterm.LightCyan(sample.Title))
		}
		return
	}

	data := pterm.TableData{
		{"Source", summary.Source},
		{"Table", summary.TableName},
		{"Status", summary.Progress.Status.String()},
		{"Records", fmt.Sprintf("%d", summary.TotalRecords)},
		{"Stored", fmt.Sprintf("%d", summary.ProcessedRecords)},
		{"Failed", fmt.Sprintf("%d", summary.FailedRecords)},
		{"Skipped", fmt.Sprintf("%d", summary.SkippedRecords)},
		{"Success rate", fmt.Sprintf("%.1f%%", summary.SuccessRate)},
	}
	if err := pterm.DefaultTable.WithData(data).Render(); err != nil {
		slog.Warn("failed to render summary", "err", err)
	}

	if summary.FailedRecords > 0 {
		pterm.Warning.Printfln("%d records failed", summary.FailedRecords)
		for _, msg := range summary.Progress.RecentErrors {
			pterm.Printfln("  %s", pterm.Red(msg))
		}
		return
	}
	pterm.Success.Printfln("Ingested %d records into %s", summary.ProcessedRecords, summary.TableName)
}

func setupCommand(c *cli.Context) error {
	path := configPath(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// A config read from the environment is never written back
	_, statErr := os.Stat(path)
	if !strings.HasPrefix(path, "env:") && errors.Is(statErr, fs.ErrNotExist) {
		if err := cfg.Write(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		pterm.Info.Printfln("Wrote default config to %s", path)
	}

	db, err := takeout.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Setup(c.Context); err != nil {
		return err
	}
	if !db.IndexEnabled() {
		pterm.Warning.Println("Embedding index is disabled, search will not be available")
	}
	pterm.Success.Printfln("Table %s is ready in %s", cfg.Table, cfg.DatabasePath())
	return nil
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := takeout.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	status, err := db.Status(c.Context, c.Int("runs"))
	if err != nil {
		return err
	}

	if len(status.Tables) == 0 {
		pterm.Info.Println("No tables yet, run 'takeout setup' or 'takeout ingest'")
		return nil
	}

	tables := pterm.TableData{{"Table", "Documents", "Chunks", "Index"}}
	for _, t := range status.Tables {
		index := "none"
		if t.Schema.Index != nil {
			index = t.Schema.Index.Model
		}
		tables = append(tables, []string{t.Schema.Table, fmt.Sprintf("%d", t.Documents), fmt.Sprintf("%d", t.Chunks), index})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(tables).Render(); err != nil {
		return err
	}

	if len(status.RecentRuns) == 0 {
		return nil
	}
	pterm.Println()
	runs := pterm.TableData{{"Run", "Source", "Status", "Stored", "Failed", "Skipped", "Finished"}}
	for _, r := range status.RecentRuns {
		runs = append(runs, []string{
			r.ID,
			filepath.Base(r.Source),
			r.Status,
			fmt.Sprintf("%d/%d", r.Processed, r.Total),
			fmt.Sprintf("%d", r.Failed),
			fmt.Sprintf("%d", r.Skipped),
			r.FinishedAt.Local().Format(time.DateTime),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(runs).Render()
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("search requires a query")
	}
	if c.Int("limit") < 1 {
		return fmt.Errorf("limit must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := takeout.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	searcher, err := db.NewSearcher(search.WithMinSimilarity(float32(c.Float64("min-similarity"))))
	if err != nil {
		return err
	}

	var monitor search.SearchMonitor = quietMonitor{}
	if c.Bool("verbose") {
		monitor = verboseMonitor{}
	}
	results, err := searcher.FindSimilarWithMonitor(c.Context, query, c.Int("limit"), monitor)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		pterm.Info.Println("No matching documents")
		return nil
	}
	pterm.Printfln("Found %d documents", len(results))
	for i, hit := range results {
		pterm.Printfln("%d. %s [%0.3f]", i+1, pterm.LightCyan(hit.Document.Title), hit.Score)
		if hit.Chunk != nil {
			pterm.Printfln("   %s", excerpt(hit.Chunk.Text, 160))
		}
	}
	return nil
}

func excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func reindexCommand(c *cli.Context) error {
	reindexConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		Backoff: reembed.Backoff{
			MaxAttempts: c.Int("max-retries"),
			BaseDelay:   c.Duration("retry-delay"),
			MaxDelay:    c.Duration("max-retry-delay"),
		},
	}

	if reindexConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reindexConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reindexConfig.Backoff.MaxAttempts <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := takeout.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	reindexer, err := db.NewReindexer(reindexConfig, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.DatabasePath())
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.Index.Host)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.Index.Model)
	fmt.Fprintln(os.Stderr)

	result, err := reindexer.Run(ctx)
	if err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	if result.Failed > 0 {
		pterm.Warning.Printfln("%d of %d documents could not be indexed", result.Failed, result.Total)
	}
	return nil
}

// configPath resolves --config, falling back to the config file in the data directory.
func configPath(c *cli.Context) string {
	if path := c.String("config"); path != "" {
		return path
	}
	return filepath.Join(homeDir(c), config.FileName)
}

func homeDir(c *cli.Context) string {
	if home := c.String("home"); home != "" {
		return home
	}
	return config.DefaultHome()
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(configPath(c))
	if err != nil {
		return nil, err
	}
	if c.IsSet("home") {
		cfg.Home = c.String("home")
	}
	return cfg, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}
	handlers := []slog.Handler{slog.NewTextHandler(c.App.ErrWriter, opts)}

	if path := c.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		if c.App.Metadata == nil {
			c.App.Metadata = map[string]any{}
		}
		c.App.Metadata[logFileKey] = f
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)))
	return nil
}

func closeLogFile(c *cli.Context) error {
	f, ok := c.App.Metadata[logFileKey].(*os.File)
	if !ok {
		return nil
	}
	delete(c.App.Metadata, logFileKey)
	return f.Close()
}

// quietMonitor ignores the search steps.
type quietMonitor struct{}

func (quietMonitor) Start(string)                          {}
func (quietMonitor) AfterChunkSearch([]*core.SearchResult) {}
func (quietMonitor) VerbatimHit(*core.SearchResult)        {}
func (quietMonitor) Finish([]*core.SearchResult)           {}

// verboseMonitor prints each search step.
type verboseMonitor struct{}

func (verboseMonitor) Start(query string) {
	pterm.Printfln("searching for %q", query)
}

func (verboseMonitor) AfterChunkSearch(matches []*core.SearchResult) {
	pterm.Printfln("%d chunk matches", len(matches))
	for _, m := range matches {
		if m.Document == nil || m.Chunk == nil {
			continue
		}
		pterm.Printfln("  doc %d chunk %d [%0.3f]", m.Document.Id, m.Chunk.Index, m.Score)
	}
}

func (verboseMonitor) VerbatimHit(result *core.SearchResult) {
	pterm.Printfln("verbatim match in %s", pterm.Green(result.Document.Title))
}

func (verboseMonitor) Finish(results []*core.SearchResult) {
	pterm.Printfln("%d documents after ranking", len(results))
}
