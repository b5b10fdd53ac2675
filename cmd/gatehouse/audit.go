package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/storage"
	"github.com/halcyonpress/gatehouse/migrations"
)

func runAudit(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) (int, error) {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	var (
		draftID = fs.String("draft", "", "draft id to inspect (required)")
		format  = fs.String("format", "text", "output format: text or json")
		dbPath  = fs.String("db", "", "database path (default from GATEHOUSE_DB)")
	)
	if err := fs.Parse(args); err != nil {
		return exitMalformedInput, err
	}
	id, err := uuid.Parse(*draftID)
	if err != nil {
		return exitMalformedInput, fmt.Errorf("-draft must be a uuid: %w", err)
	}

	if *dbPath == "" {
		*dbPath = cfg.DatabasePath
	}
	db, err := storage.Open(ctx, *dbPath, logger)
	if err != nil {
		return exitMalformedInput, fmt.Errorf("storage: %w", err)
	}
	defer db.Close()
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return exitMalformedInput, fmt.Errorf("migrations: %w", err)
	}

	entries, err := db.ListAudit(ctx, id)
	if err != nil {
		return exitMalformedInput, err
	}

	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return exitOK, enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Printf("no audit entries for draft %s\n", id)
		return exitOK, nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSTAGE\tFROM\tTO\tISSUES")
	for _, e := range entries {
		issues := ""
		if len(e.Issues) > 0 {
			issues = e.Issues[0]
			if len(e.Issues) > 1 {
				issues = fmt.Sprintf("%s (+%d more)", issues, len(e.Issues)-1)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Stage, e.FromState, e.ToState, issues)
	}
	return exitOK, w.Flush()
}
