package model_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonpress/gatehouse/internal/model"
)

func validDraft() model.Draft {
	return model.Draft{
		ID:          uuid.New(),
		Title:       "Regulator fines operator over ad breaches",
		Body:        "The commission announced a fine on Tuesday. The operator accepted the findings.",
		Category:    "industry",
		ContentType: model.ContentNews,
		Urgency:     model.UrgencyNormal,
		Sources: []model.Source{
			{EvidenceID: "ev-1", URL: "https://www.gamblingcommission.gov.uk/news", Domain: "gamblingcommission.gov.uk", Credibility: 9},
		},
	}
}

func TestValidateDraft(t *testing.T) {
	require.NoError(t, model.ValidateDraft(validDraft()))

	tests := []struct {
		name   string
		mutate func(*model.Draft)
	}{
		{"missing id", func(d *model.Draft) { d.ID = uuid.Nil }},
		{"missing title", func(d *model.Draft) { d.Title = "  " }},
		{"missing body", func(d *model.Draft) { d.Body = "" }},
		{"unknown content type", func(d *model.Draft) { d.ContentType = "editorial" }},
		{"source without evidence id", func(d *model.Draft) { d.Sources[0].EvidenceID = "" }},
		{"credibility out of range", func(d *model.Draft) { d.Sources[0].Credibility = 11 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)
			assert.Error(t, model.ValidateDraft(d))
		})
	}
}

func TestActionForConfidence_BoundariesInclusive(t *testing.T) {
	tests := []struct {
		confidence float64
		want       model.Action
	}{
		{100, model.ActionPublish},
		{85, model.ActionPublish}, // exactly at publish threshold
		{84.9, model.ActionReview},
		{60, model.ActionReview}, // exactly at review threshold
		{59.9, model.ActionReject},
		{0, model.ActionReject},
	}
	for _, tt := range tests {
		got := model.ActionForConfidence(tt.confidence, 85, 60)
		assert.Equal(t, tt.want, got, "confidence %v", tt.confidence)
	}
}

func TestTierForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  model.ConsensusTier
	}{
		{95, model.TierAuthoritative},
		{90, model.TierAuthoritative},
		{89.9, model.TierHigh},
		{70, model.TierHigh},
		{69.9, model.TierDisputed},
		{40, model.TierDisputed},
		{39.9, model.TierUntrusted},
		{0, model.TierUntrusted},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, model.TierForScore(tt.score), "score %v", tt.score)
	}
}

func TestPipelineStateTransitions(t *testing.T) {
	assert.True(t, model.StateDraft.CanTransition(model.StatePublished))
	assert.True(t, model.StateRetryResearch.CanTransition(model.StateDraft))
	assert.False(t, model.StatePublished.CanTransition(model.StateArchived), "published is terminal")
	assert.False(t, model.StateHold.CanTransition(model.StateDraft), "hold is not retryable")
	assert.False(t, model.StateHold.CanTransition(model.StateHold))
}

func TestWordCount(t *testing.T) {
	d := model.Draft{Body: "one two  three\nfour\tfive"}
	assert.Equal(t, 5, d.WordCount())
}
