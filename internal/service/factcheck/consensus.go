package factcheck

import (
	"math"

	"github.com/halcyonpress/gatehouse/internal/model"
)

// Consensus score weights. Agreement on confidence and approved regulations
// dominates; cost-validity and action agreement split the remainder.
const (
	weightVariance   = 0.3
	weightRegulation = 0.3
	weightCost       = 0.2
	weightAction     = 0.2

	errorPenaltyPerItem = 5.0
	errorPenaltyCap     = 30.0
)

// consensusScore measures cross-provider agreement on a 0-100 scale.
// Requires at least two results; the single-provider case short-circuits to
// that provider's confidence before reaching here.
func consensusScore(results []model.ValidationResult) float64 {
	confs := confidences(results)

	varianceComponent := 100 - variance(confs)
	if varianceComponent < 0 {
		varianceComponent = 0
	}

	score := weightVariance*varianceComponent +
		weightRegulation*100*meanPairwiseJaccard(results) +
		weightCost*100*majorityFractionBool(results) +
		weightAction*100*majorityFractionAction(results)

	penalty := errorPenaltyPerItem * float64(distinctErrors(results))
	if penalty > errorPenaltyCap {
		penalty = errorPenaltyCap
	}
	score -= penalty

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func confidences(results []model.ValidationResult) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = r.Confidence
	}
	return out
}

func meanStdDev(vals []float64) (mean, stddev float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	if len(vals) < 2 {
		return mean, 0
	}
	return mean, math.Sqrt(variance(vals))
}

// variance is the population variance.
func variance(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	var sum float64
	for _, v := range vals {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(vals))
}

// jaccard is |a∩b| / |a∪b|; two empty sets agree perfectly.
func jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	inter := 0
	for v := range setA {
		if setB[v] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func toSet(vals []string) map[string]bool {
	s := make(map[string]bool, len(vals))
	for _, v := range vals {
		s[v] = true
	}
	return s
}

// meanPairwiseJaccard averages approved-regulation overlap across every
// provider pair.
func meanPairwiseJaccard(results []model.ValidationResult) float64 {
	if len(results) < 2 {
		return 1
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			sum += jaccard(results[i].ApprovedRegulations, results[j].ApprovedRegulations)
			pairs++
		}
	}
	return sum / float64(pairs)
}

// majorityFractionBool is the share of providers agreeing with the majority
// position on cost-estimate validity.
func majorityFractionBool(results []model.ValidationResult) float64 {
	valid := 0
	for _, r := range results {
		if r.CostEstimateValid {
			valid++
		}
	}
	invalid := len(results) - valid
	return float64(max(valid, invalid)) / float64(len(results))
}

// majorityFractionAction is the share of providers recommending the most
// common action.
func majorityFractionAction(results []model.ValidationResult) float64 {
	counts := map[model.Action]int{}
	for _, r := range results {
		counts[r.Action]++
	}
	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}
	return float64(best) / float64(len(results))
}

// majorityCostValid is the majority vote on cost-estimate validity.
// Ties break conservative: invalid.
func majorityCostValid(results []model.ValidationResult) bool {
	valid := 0
	for _, r := range results {
		if r.CostEstimateValid {
			valid++
		}
	}
	return valid*2 > len(results)
}

// distinctErrors counts unique factual-error strings across providers.
func distinctErrors(results []model.ValidationResult) int {
	seen := map[string]bool{}
	for _, r := range results {
		for _, e := range r.FactualErrors {
			seen[e] = true
		}
	}
	return len(seen)
}
