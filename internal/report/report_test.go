package report

import (
	"strings"
	"testing"
	"time"

	"goelda/domain/core"
	"goelda/domain/dilution"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBundle() *dilution.Bundle {
	return &dilution.Bundle{
		RunID:     core.RunID("0190f5b4-6a4e-7c1e-9d7a-1b2c3d4e5f60"),
		Options:   dilution.DefaultOptions(),
		Groups:    []string{"A", "B|C"},
		CreatedAt: core.NewTimestamp(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
		Estimates: []dilution.FrequencyEstimate{
			{Group: "A", Estimate: 12.3456, Lower: 8.1, Upper: 19.9},
			{Group: "B|C", Estimate: 250, Lower: 150, Upper: 430},
		},
		Tests: dilution.TestSuite{
			Overall:       &dilution.TestResult{Name: dilution.TestOverall, Statistic: 40.2, DF: 1, PValue: 2e-10},
			GoodnessOfFit: &dilution.TestResult{Name: dilution.TestGoodnessOfFit, Statistic: 3.1, DF: 7, PValue: 0.875},
			Omitted:       []dilution.OmittedTest{{Name: dilution.TestValidity, Reason: "df 0"}},
		},
		Pairwise: []dilution.PairwiseResult{
			{Group1: "A", Group2: "B|C", Test: dilution.TestResult{Name: dilution.TestOverall, Statistic: 40.2, DF: 1, PValue: 2e-10}},
		},
		Summaries: []dilution.GroupSummary{{Group: "A", Observations: 5, DistinctDoses: 5, MinDose: 10, MaxDose: 50, Tested: 50, Responded: 44}},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleBundle())

	assert.True(t, strings.HasPrefix(md, "# Limiting dilution analysis"))
	assert.Contains(t, md, "| A | 12.35 | 8.1 | 19.9 |")
	assert.Contains(t, md, `| B\|C | 250 | 150 | 430 |`)
	assert.Contains(t, md, "| Overall | 40.2 | 1 | < 0.0001 |")
	assert.Contains(t, md, "| Goodness of fit | 3.1 | 7 | 0.8750 |")
	assert.Contains(t, md, "| Validity (common slope) | omitted | | |")
	assert.Contains(t, md, "## Pairwise comparisons")
	assert.Contains(t, md, "2025-03-01 12:00:00 UTC")
	assert.Contains(t, md, "bias-reduced")
}

func TestMarkdown_NoPairwiseSection(t *testing.T) {
	b := sampleBundle()
	b.Pairwise = nil
	b.Summaries = nil
	md := Markdown(b)
	assert.NotContains(t, md, "Pairwise")
	assert.NotContains(t, md, "## Data")
}

func TestHTML(t *testing.T) {
	page := string(HTML(sampleBundle()))

	assert.Contains(t, page, "<html")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<h2")
	assert.Contains(t, page, "0190f5b4-6a4e-7c1e-9d7a-1b2c3d4e5f60")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "MD": FormatMarkdown, "markdown": FormatMarkdown, " html ": FormatHTML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}
