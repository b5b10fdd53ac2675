package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/halcyonpress/gatehouse/internal/config"
	"github.com/halcyonpress/gatehouse/internal/model"
	"github.com/halcyonpress/gatehouse/internal/service/pipeline"
)

// submission is the input contract from the writer and research
// collaborators: one draft plus its evidence items.
type submission struct {
	Draft    model.Draft          `json:"draft"`
	Evidence []model.EvidenceItem `json:"evidence"`
}

func runValidate(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) (int, error) {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	var (
		file     = fs.String("file", "", "single submission JSON file (draft + evidence); reads an interactive draft from stdin when empty")
		batch    = fs.String("batch", "", "JSON file holding an array of submissions")
		format   = fs.String("format", "text", "output format: text, json, or markdown")
		profile  = fs.String("profile", "", "force a named policy profile instead of routing")
		dbPath   = fs.String("db", "", "database path (default from GATEHOUSE_DB)")
		strict   = fs.Bool("strict", false, "treat quality-gate failures as hard stops")
		minScore = fs.Float64("min-score", 0, "override the consensus publish threshold (0 keeps the policy value)")
	)
	if err := fs.Parse(args); err != nil {
		return exitMalformedInput, err
	}
	if !slices.Contains([]string{"text", "json", "markdown"}, *format) {
		return exitMalformedInput, fmt.Errorf("unknown format %q", *format)
	}
	if *file != "" && *batch != "" {
		return exitMalformedInput, fmt.Errorf("-file and -batch are mutually exclusive")
	}

	subs, err := loadSubmissions(*file, *batch)
	if err != nil {
		return exitMalformedInput, err
	}

	machine, cleanup, err := buildMachine(ctx, cfg, logger, *dbPath, *profile, *strict, *minScore)
	if err != nil {
		return exitMalformedInput, err
	}
	defer cleanup()

	code := exitOK
	for _, sub := range subs {
		out, err := machine.Process(ctx, sub.Draft, sub.Evidence)
		if err != nil {
			return exitMalformedInput, err
		}
		if err := render(os.Stdout, *format, out); err != nil {
			return exitMalformedInput, err
		}
		if slices.Contains(out.Issues, pipeline.IssueAllProvidersFailed) {
			code = exitProvidersFailed
		}
	}
	return code, nil
}

func loadSubmissions(file, batch string) ([]submission, error) {
	switch {
	case batch != "":
		raw, err := os.ReadFile(batch)
		if err != nil {
			return nil, fmt.Errorf("read batch: %w", err)
		}
		var subs []submission
		if err := json.Unmarshal(raw, &subs); err != nil {
			return nil, fmt.Errorf("parse batch %s: %w", batch, err)
		}
		if len(subs) == 0 {
			return nil, fmt.Errorf("batch %s holds no submissions", batch)
		}
		return subs, nil
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read submission: %w", err)
		}
		var sub submission
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("parse submission %s: %w", file, err)
		}
		return []submission{sub}, nil
	default:
		sub, err := promptSubmission()
		if err != nil {
			return nil, err
		}
		return []submission{sub}, nil
	}
}

// promptSubmission reads an ad-hoc draft interactively: a title line, then
// body text until EOF. Useful for spot-checking copy without a file.
func promptSubmission() (submission, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Fprint(os.Stderr, "title: ")
	title, err := reader.ReadString('\n')
	if err != nil {
		return submission{}, fmt.Errorf("read title: %w", err)
	}

	fmt.Fprintln(os.Stderr, "body (end with EOF):")
	var body strings.Builder
	for {
		line, err := reader.ReadString('\n')
		body.WriteString(line)
		if err != nil {
			break
		}
	}

	return submission{Draft: model.Draft{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(title),
		Body:        body.String(),
		ContentType: model.ContentGeneral,
		Urgency:     model.UrgencyNormal,
	}}, nil
}
