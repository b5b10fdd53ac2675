package model

// PipelineState is the lifecycle stage of a draft. A draft holds exactly one
// active state; transitions are one-way except explicit retry re-entry.
type PipelineState string

const (
	StateDraft           PipelineState = "draft"
	StateFailedSchema    PipelineState = "failed_schema"
	StateFailedQuality   PipelineState = "failed_quality"
	StateFailedCitation  PipelineState = "failed_citation"
	StateRetryResearch   PipelineState = "retry_research"
	StateRetryDraft      PipelineState = "retry_draft"
	StateFailedFactCheck PipelineState = "failed_fact_check"
	StateHold            PipelineState = "hold"
	StatePublished       PipelineState = "published"
	StateArchived        PipelineState = "archived"
)

// terminal states admit no further transitions.
var terminalStates = map[PipelineState]bool{
	StatePublished: true,
	StateArchived:  true,
}

// retryStates admit re-entry into the pipeline.
var retryStates = map[PipelineState]bool{
	StateRetryResearch: true,
	StateRetryDraft:    true,
	StateFailedQuality: true,
}

// Terminal reports whether the state admits no further transitions.
func (s PipelineState) Terminal() bool { return terminalStates[s] }

// Retryable reports whether a draft in this state may re-enter the pipeline.
func (s PipelineState) Retryable() bool { return retryStates[s] }

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Any non-terminal state may move forward; retry states may also move
// back to draft.
func (s PipelineState) CanTransition(next PipelineState) bool {
	if s.Terminal() {
		return false
	}
	if next == StateDraft {
		return s.Retryable()
	}
	return s != next
}
