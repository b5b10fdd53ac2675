package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/halcyonpress/gatehouse/internal/service/pipeline"
)

func render(w io.Writer, format string, out pipeline.Outcome) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "markdown":
		return renderMarkdown(w, out)
	default:
		return renderText(w, out)
	}
}

func renderText(w io.Writer, out pipeline.Outcome) error {
	fmt.Fprintf(w, "draft %s: %s (profile %s)\n", out.DraftID, out.FinalState, out.Profile)
	if out.Quality != nil {
		fmt.Fprintf(w, "  quality: %.1f (%d words, %d sections, %d sources)\n",
			out.Quality.Score, out.Quality.Words, out.Quality.Sections, out.Quality.Sources)
	}
	if out.Ensemble != nil {
		fmt.Fprintf(w, "  consensus: %.1f %s, action %s, cost $%.4f\n",
			out.Ensemble.ConsensusScore, out.Ensemble.ConsensusTier,
			out.Ensemble.Synthesis.Action, out.Ensemble.TotalCost)
	}
	if out.Verdict != nil {
		fmt.Fprintf(w, "  council: %s (avg %.1f, confidence %.2f)\n",
			out.Verdict.Decision, out.Verdict.AverageScore, out.Verdict.Confidence)
	}
	for _, issue := range out.Issues {
		fmt.Fprintf(w, "  issue: %s\n", issue)
	}
	return nil
}

func renderMarkdown(w io.Writer, out pipeline.Outcome) error {
	fmt.Fprintf(w, "## Draft %s\n\n", out.DraftID)
	fmt.Fprintf(w, "| Field | Value |\n|---|---|\n")
	fmt.Fprintf(w, "| Final state | `%s` |\n", out.FinalState)
	fmt.Fprintf(w, "| Profile | %s |\n", out.Profile)
	if out.Quality != nil {
		fmt.Fprintf(w, "| Quality score | %.1f |\n", out.Quality.Score)
	}
	if out.Ensemble != nil {
		fmt.Fprintf(w, "| Consensus | %.1f (%s) |\n", out.Ensemble.ConsensusScore, out.Ensemble.ConsensusTier)
		fmt.Fprintf(w, "| Recommended action | %s |\n", out.Ensemble.Synthesis.Action)
	}
	if out.Verdict != nil {
		fmt.Fprintf(w, "| Council decision | %s |\n", out.Verdict.Decision)
	}
	if len(out.Issues) > 0 {
		fmt.Fprintf(w, "\n### Issues\n\n")
		for _, issue := range out.Issues {
			fmt.Fprintf(w, "- %s\n", issue)
		}
	}
	return nil
}
