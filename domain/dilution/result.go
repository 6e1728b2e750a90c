package dilution

import (
	"goelda/domain/core"
)

// FrequencyEstimate is the estimated number of cells per responding unit for
// one group. Lower <= Estimate <= Upper always holds.
type FrequencyEstimate struct {
	Group    string  `json:"group"`
	Estimate float64 `json:"estimate"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
	LogRate  float64 `json:"log_rate"` // log responding units per cell
	StdErr   float64 `json:"std_err"`  // Wald standard error of LogRate
}

// TestKind names the hypothesis tests the engine reports.
type TestKind string

const (
	TestOverall        TestKind = "overall"
	TestValidity       TestKind = "validity"
	TestGoodnessOfFit  TestKind = "goodness_of_fit"
	TestOverdispersion TestKind = "overdispersion"
	TestSingleHitSlope TestKind = "single_hit_slope"
)

// Title is the human-readable test name.
func (k TestKind) Title() string {
	switch k {
	case TestOverall:
		return "Overall"
	case TestValidity:
		return "Validity (common slope)"
	case TestGoodnessOfFit:
		return "Goodness of fit"
	case TestOverdispersion:
		return "Overdispersion"
	case TestSingleHitSlope:
		return "Single-hit slope"
	default:
		return string(k)
	}
}

// TestResult is a chi-square statistic with its reference degrees of freedom.
type TestResult struct {
	Name      TestKind `json:"name"`
	Statistic float64  `json:"statistic"`
	DF        int      `json:"df"`
	PValue    float64  `json:"p_value"`
}

// OmittedTest records a test that could not be computed, with the reason.
type OmittedTest struct {
	Name   TestKind `json:"name"`
	Reason string   `json:"reason"`
}

// TestSuite holds the full-dataset tests. A nil entry is listed in Omitted.
type TestSuite struct {
	Overall        *TestResult   `json:"overall,omitempty"`
	Validity       *TestResult   `json:"validity,omitempty"`
	GoodnessOfFit  *TestResult   `json:"goodness_of_fit,omitempty"`
	Overdispersion *TestResult   `json:"overdispersion,omitempty"`
	SingleHitSlope *TestResult   `json:"single_hit_slope,omitempty"`
	Omitted        []OmittedTest `json:"omitted,omitempty"`
}

// Results lists the computed tests in reporting order.
func (s TestSuite) Results() []TestResult {
	var out []TestResult
	for _, r := range []*TestResult{s.Overall, s.Validity, s.GoodnessOfFit, s.Overdispersion, s.SingleHitSlope} {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// PairwiseResult is the overall test restricted to two groups.
type PairwiseResult struct {
	Group1 string     `json:"group1"`
	Group2 string     `json:"group2"`
	Test   TestResult `json:"test"`
}

// GroupSummary describes the raw data of one group.
type GroupSummary struct {
	Group            string  `json:"group"`
	Observations     int     `json:"observations"`
	DistinctDoses    int     `json:"distinct_doses"`
	MinDose          float64 `json:"min_dose"`
	MaxDose          float64 `json:"max_dose"`
	Tested           int     `json:"tested"`
	Responded        int     `json:"responded"`
	MeanResponseRate float64 `json:"mean_response_rate"`
}

// Bundle is everything one engine run produces. It carries no formatting.
type Bundle struct {
	RunID       core.RunID          `json:"run_id"`
	Fingerprint core.Fingerprint    `json:"fingerprint"`
	Options     Options             `json:"options"`
	Groups      []string            `json:"groups"`
	Estimates   []FrequencyEstimate `json:"estimates"`
	Tests       TestSuite           `json:"tests"`
	Pairwise    []PairwiseResult    `json:"pairwise"`
	Summaries   []GroupSummary      `json:"summaries,omitempty"`
	CreatedAt   core.Timestamp      `json:"created_at"`
}

// Estimate looks up the frequency estimate for a group.
func (b *Bundle) Estimate(group string) (FrequencyEstimate, bool) {
	for _, e := range b.Estimates {
		if e.Group == group {
			return e, true
		}
	}
	return FrequencyEstimate{}, false
}
