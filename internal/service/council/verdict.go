package council

import (
	"fmt"
	"strings"

	"github.com/halcyonpress/gatehouse/internal/model"
	"github.com/halcyonpress/gatehouse/internal/service/gates"
)

// Fallbacks when a profile leaves thresholds at zero.
const (
	defaultKillThreshold = 50
	defaultMinScore      = 70
)

// synthesizeVerdict folds the three agent views into a decision. Order
// matters: kill conditions are checked first, then per-persona minimums,
// then the publish rule (unanimous or majority depending on the profile).
func synthesizeVerdict(views []model.AgentView, profile model.Profile) model.CouncilVerdict {
	kill := profile.KillThreshold
	if kill <= 0 {
		kill = defaultKillThreshold
	}
	minAdvocate := orDefault(profile.MinAdvocate)
	minSkeptic := orDefault(profile.MinSkeptic)
	minGuardian := orDefault(profile.MinGuardian)

	byPersona := map[model.Persona]model.AgentView{}
	scores := map[model.Persona]float64{}
	var sum float64
	for _, v := range views {
		byPersona[v.Persona] = v
		scores[v.Persona] = v.Score
		sum += v.Score
	}
	avg := sum / float64(len(views))

	verdict := model.CouncilVerdict{
		Scores:        scores,
		AverageScore:  avg,
		Dissents:      dissents(views, avg),
		DebateSummary: summarize(views),
	}

	skeptic := byPersona[model.PersonaSkeptic]
	guardian := byPersona[model.PersonaGuardian]
	advocate := byPersona[model.PersonaAdvocate]

	switch {
	case skeptic.Score < kill:
		return killed(verdict, kill, skeptic.Score,
			fmt.Sprintf("skeptic score %s below kill threshold %s", formatScore(skeptic.Score), formatScore(kill)))
	case guardian.Score < kill:
		return killed(verdict, kill, guardian.Score,
			fmt.Sprintf("guardian score %s below kill threshold %s", formatScore(guardian.Score), formatScore(kill)))
	case avg < kill:
		return killed(verdict, kill, avg,
			fmt.Sprintf("average score %s below kill threshold %s", formatScore(avg), formatScore(kill)))
	}

	type shortfall struct {
		view model.AgentView
		min  float64
	}
	for _, sf := range []shortfall{
		{skeptic, minSkeptic},
		{guardian, minGuardian},
		{advocate, minAdvocate},
	} {
		if sf.view.Score < sf.min {
			verdict.Decision = model.DecisionRevise
			verdict.Confidence = avg / 100
			verdict.RequiredFixes = append(append([]string{}, sf.view.Recommendations...), sf.view.Concerns...)
			verdict.Dissents = append(verdict.Dissents,
				fmt.Sprintf("%s: %s below minimum %s", sf.view.Persona, formatScore(sf.view.Score), formatScore(sf.min)))
			return verdict
		}
	}

	if profile.RequireUnanimous {
		// Every persona cleared its minimum above, so unanimity holds.
		verdict.Decision = model.DecisionPublish
		verdict.Confidence = avg / 100
		return verdict
	}

	strong := 0
	for _, v := range views {
		if v.Score >= 80 {
			strong++
		}
	}
	if strong >= 2 || avg >= 70 {
		verdict.Decision = model.DecisionPublish
		verdict.Confidence = avg / 100
		return verdict
	}

	verdict.Decision = model.DecisionRevise
	verdict.Confidence = avg / 100
	verdict.RequiredFixes = collectConcerns(views)
	return verdict
}

// killed finalizes a KILL verdict. Confidence grows with the shortfall below
// the threshold, floored at 0.5 for a marginal kill and capped at 0.95.
func killed(verdict model.CouncilVerdict, threshold, score float64, reason string) model.CouncilVerdict {
	conf := 0.5 + (threshold-score)/threshold*0.5
	if conf > 0.95 {
		conf = 0.95
	}
	verdict.Decision = model.DecisionKill
	verdict.Confidence = conf
	verdict.KillReason = reason
	return verdict
}

// applyGateCheck folds one gate result into the verdict. Gates only tighten:
// a failure downgrades PUBLISH to REVISE, records the issues, and discounts
// confidence. A pass changes nothing.
func applyGateCheck(verdict model.CouncilVerdict, name string, result gates.Result) model.CouncilVerdict {
	if result.Passes {
		return verdict
	}
	if verdict.Decision == model.DecisionPublish {
		verdict.Decision = model.DecisionRevise
	}
	verdict.RequiredFixes = append(verdict.RequiredFixes, result.Issues...)
	verdict.Confidence *= 0.8
	verdict.DebateSummary += fmt.Sprintf("\ngate check %s failed: %s", name, strings.Join(result.Issues, "; "))
	return verdict
}

func orDefault(min float64) float64 {
	if min <= 0 {
		return defaultMinScore
	}
	return min
}

// dissents lists personas scoring well below the table average.
func dissents(views []model.AgentView, avg float64) []string {
	var out []string
	for _, v := range views {
		if avg-v.Score > 15 {
			out = append(out, fmt.Sprintf("%s: %s against average %s", v.Persona, formatScore(v.Score), formatScore(avg)))
		}
	}
	return out
}

func collectConcerns(views []model.AgentView) []string {
	var out []string
	for _, v := range views {
		out = append(out, v.Concerns...)
	}
	return out
}

func summarize(views []model.AgentView) string {
	parts := make([]string, 0, len(views))
	for _, v := range views {
		line := fmt.Sprintf("%s scored %s", v.Persona, formatScore(v.Score))
		if v.Degraded {
			line += " (degraded)"
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, "; ")
}
