package gates_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyonpress/gatehouse/internal/model"
	"github.com/halcyonpress/gatehouse/internal/service/gates"
)

func TestCitation_AllBound(t *testing.T) {
	d := model.Draft{Sources: []model.Source{
		{EvidenceID: "ev-1", Title: "Regulator statement", URL: "https://example.gov.uk/a"},
	}}
	ev := []model.EvidenceItem{{ID: "ev-1", URL: "https://example.gov.uk/a"}}

	r := gates.Citation(d, ev)
	assert.True(t, r.Passes)
	assert.Equal(t, 1.0, r.Metrics["bound"])
}

func TestCitation_DanglingReference(t *testing.T) {
	d := model.Draft{Sources: []model.Source{
		{EvidenceID: "ev-404", Title: "Mystery source"},
	}}

	r := gates.Citation(d, nil)
	assert.False(t, r.Passes)
	require.Len(t, r.Issues, 1)
	assert.Contains(t, r.Issues[0], "ev-404")
}

func TestCitation_NoSources(t *testing.T) {
	r := gates.Citation(model.Draft{}, nil)
	assert.False(t, r.Passes)
	assert.Contains(t, r.Issues[0], "no sources")
}

func TestClaimLedger_AlwaysPasses(t *testing.T) {
	d := model.Draft{Body: "Revenue hit 4.2 billion last year. The market is the biggest in Europe."}
	r := gates.ClaimLedger(d)

	assert.True(t, r.Passes, "claim ledger is a soft gate")
	assert.Equal(t, 2.0, r.Metrics["claims"])
	assert.Equal(t, 2.0, r.Metrics["unsupported"])
	assert.Len(t, r.Issues, 2)
}

func TestClaimLedger_CitedClaimsNotFlagged(t *testing.T) {
	d := model.Draft{Body: "According to the commission, revenue hit 4.2 billion last year. The weather was pleasant."}
	r := gates.ClaimLedger(d)

	assert.True(t, r.Passes)
	assert.Equal(t, 1.0, r.Metrics["claims"])
	assert.Equal(t, 0.0, r.Metrics["unsupported"])
	assert.Empty(t, r.Issues)
}
