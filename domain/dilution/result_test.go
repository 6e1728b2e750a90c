package dilution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestSuite_ResultsSkipsOmitted(t *testing.T) {
	suite := TestSuite{
		GoodnessOfFit:  &TestResult{Name: TestGoodnessOfFit, Statistic: 2, DF: 3, PValue: 0.57},
		Overdispersion: &TestResult{Name: TestOverdispersion, Statistic: 1.8, DF: 3, PValue: 0.61},
		Omitted:        []OmittedTest{{Name: TestOverall}, {Name: TestValidity}},
	}

	results := suite.Results()
	if assert.Len(t, results, 2) {
		assert.Equal(t, TestGoodnessOfFit, results[0].Name)
		assert.Equal(t, TestOverdispersion, results[1].Name)
	}
}

func TestBundle_Estimate(t *testing.T) {
	b := &Bundle{Estimates: []FrequencyEstimate{{Group: "A", Estimate: 10}, {Group: "B", Estimate: 50}}}

	e, ok := b.Estimate("B")
	assert.True(t, ok)
	assert.Equal(t, 50.0, e.Estimate)

	_, ok = b.Estimate("C")
	assert.False(t, ok)
}

func TestTestKind_Title(t *testing.T) {
	assert.Equal(t, "Overall", TestOverall.Title())
	assert.Equal(t, "Single-hit slope", TestSingleHitSlope.Title())
	assert.Equal(t, "custom", TestKind("custom").Title())
}
