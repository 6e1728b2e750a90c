package glm

import (
	"math"
	"testing"

	"goelda/domain/core"
	"goelda/domain/dilution"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectedCounts builds a dataset whose responses sit at the model's expected
// value, so ML must recover the generating coefficients.
func expectedCounts(groups map[string]float64, order []string, slope float64, doses []float64, tested int) dilution.Dataset {
	var obs []dilution.Observation
	for _, g := range order {
		for _, dose := range doses {
			p := 1 - math.Exp(-math.Exp(groups[g]+slope*math.Log(dose)))
			obs = append(obs, dilution.Observation{
				Dose:      dose,
				Responded: int(math.Round(p * float64(tested))),
				Tested:    tested,
				Group:     g,
			})
		}
	}
	return dilution.NewDataset(obs)
}

func concreteScenario() dilution.Dataset {
	doses := []float64{50, 40, 30, 20, 10}
	a := []int{10, 10, 10, 8, 6}
	b := []int{4, 3, 1, 0, 0}
	var obs []dilution.Observation
	for i, d := range doses {
		obs = append(obs, dilution.Observation{Dose: d, Responded: a[i], Tested: 10, Group: "A"})
	}
	for i, d := range doses {
		obs = append(obs, dilution.Observation{Dose: d, Responded: b[i], Tested: 10, Group: "B"})
	}
	return dilution.NewDataset(obs)
}

func TestFitter_RecoversGeneratingCoefficients(t *testing.T) {
	ds := expectedCounts(map[string]float64{"A": math.Log(0.2), "B": math.Log(0.05)}, []string{"A", "B"}, 1, []float64{1, 2, 5, 10, 20}, 1_000_000)

	d, err := NewBuilder().Build(ds, SingleHit)
	require.NoError(t, err)

	m, err := NewFitter(0, 0, nil).Fit(d, false)
	require.NoError(t, err)

	assert.InDelta(t, math.Log(0.2), m.Coefficients[0], 1e-3)
	assert.InDelta(t, 1.0, m.Coefficients[1], 1e-3)
	assert.InDelta(t, math.Log(0.05)-math.Log(0.2), m.Coefficients[2], 1e-3)
	assert.Equal(t, ds.Len()-3, m.DFResidual)
	assert.Less(t, m.Deviance, 1.0)
}

func TestFitter_ScoreVanishesAtMaximumLikelihood(t *testing.T) {
	ds := concreteScenario()
	d, err := NewBuilder().Build(ds, SingleHit)
	require.NoError(t, err)

	m, err := NewFitter(0, 0, nil).Fit(d, false)
	require.NoError(t, err)

	score := make([]float64, m.NumParams())
	for i := 0; i < d.NumObservations(); i++ {
		eta := math.Log(-math.Log(1 - m.Fitted[i]))
		resid := d.Responded[i] - d.Tested[i]*m.Fitted[i]
		factor := muEta(eta) / (m.Fitted[i] * (1 - m.Fitted[i]))
		for j, x := range d.X.RawRowView(i) {
			score[j] += x * resid * factor
		}
	}
	for j, s := range score {
		assert.InDelta(t, 0, s, 1e-4, "score component %d", j)
	}
}

func TestFitter_DevianceMatchesSaturatedGap(t *testing.T) {
	ds := concreteScenario()
	d, err := NewBuilder().Build(ds, SingleHit)
	require.NoError(t, err)

	m, err := NewFitter(0, 0, nil).Fit(d, false)
	require.NoError(t, err)

	saturated := 0.0
	for i := range d.Responded {
		y, n := d.Responded[i], d.Tested[i]
		saturated += logChoose(n, y)
		if y > 0 {
			saturated += y * math.Log(y/n)
		}
		if n-y > 0 {
			saturated += (n - y) * math.Log((n-y)/n)
		}
	}
	assert.InDelta(t, 2*(saturated-m.LogLik), m.Deviance, 1e-8)
}

func TestFitter_NestedLikelihoodsAreOrdered(t *testing.T) {
	specs, err := NewBuilder().BuildAll(concreteScenario())
	require.NoError(t, err)

	f := NewFitter(0, 0, nil)
	null, err := f.Fit(specs.Null, false)
	require.NoError(t, err)
	single, err := f.Fit(specs.SingleHit, false)
	require.NoError(t, err)
	full, err := f.Fit(specs.Full, false)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, single.LogLik, null.LogLik-1e-9)
	assert.GreaterOrEqual(t, full.LogLik, single.LogLik-1e-9)
	assert.Equal(t, 2, null.NumParams())
	assert.Equal(t, 3, single.NumParams())
	assert.Equal(t, 4, full.NumParams())
}

func TestFitter_BiasReductionHandlesCompleteResponse(t *testing.T) {
	ds := dilution.NewDataset([]dilution.Observation{
		{Dose: 10, Responded: 6, Tested: 6, Group: "all"},
		{Dose: 20, Responded: 6, Tested: 6, Group: "all"},
		{Dose: 50, Responded: 6, Tested: 6, Group: "all"},
	})
	d, err := NewBuilder().Build(ds, SingleHit)
	require.NoError(t, err)

	f := NewFitter(0, 0, nil)

	m, err := f.Fit(d, true)
	require.NoError(t, err)
	for j, b := range m.Coefficients {
		assert.False(t, math.IsNaN(b) || math.IsInf(b, 0), "coefficient %d = %v", j, b)
		assert.False(t, math.IsNaN(m.StdErr(j)), "std err %d", j)
	}
	assert.False(t, math.IsNaN(m.PenalizedLogLik))

	_, err = f.Fit(d, false)
	require.Error(t, err)
	var convErr *core.ConvergenceError
	require.ErrorAs(t, err, &convErr, "plain ML must fail loudly under separation, got %v", err)
	assert.NotEmpty(t, convErr.Coefficients)
}

func TestFitter_SeparatedGroupFailsWithLastIterate(t *testing.T) {
	ds := concreteScenario()
	for i := 5; i < 10; i++ {
		ds.Observations[i].Responded = 0
	}
	d, err := NewBuilder().Build(ds, SingleHit)
	require.NoError(t, err)

	_, err = NewFitter(0, 0, nil).Fit(d, false)
	require.Error(t, err)

	var convErr *core.ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.ErrorIs(t, err, core.ErrConvergence)
	assert.True(t, core.IsFittingError(err))
	assert.Equal(t, "single-hit", convErr.Model)
	assert.Len(t, convErr.Coefficients, 3)
	// B's log-rate offset heads to -Inf
	assert.Negative(t, convErr.Coefficients[2])
}

func TestFitter_RefitReachesConstrainedObjective(t *testing.T) {
	d, err := NewBuilder().Build(concreteScenario(), SingleHit)
	require.NoError(t, err)

	f := NewFitter(0, 0, nil)
	m, err := f.Fit(d, true)
	require.NoError(t, err)

	c, err := d.GroupContrast("B")
	require.NoError(t, err)
	value, se := m.Contrast(c)
	reduced, err := d.Constrain(c, value+2*se)
	require.NoError(t, err)

	start := reduced.Reduce(m.Coefficients)
	full, err := f.FitFrom(reduced, true, start)
	require.NoError(t, err)
	quick, err := f.Refit(reduced, true, start)
	require.NoError(t, err)

	assert.InDelta(t, full.Objective(), quick.Objective(), 1e-6)
	assert.LessOrEqual(t, quick.Iterations, full.Iterations)
}

func TestFitter_BiasReducedFitIsInvariantToReferenceGroup(t *testing.T) {
	ds := concreteScenario()
	swapped := dilution.NewDataset(append(append([]dilution.Observation(nil), ds.Observations[5:]...), ds.Observations[:5]...))

	f := NewFitter(0, 0, nil)
	d1, err := NewBuilder().Build(ds, SingleHit)
	require.NoError(t, err)
	d2, err := NewBuilder().Build(swapped, SingleHit)
	require.NoError(t, err)

	m1, err := f.Fit(d1, true)
	require.NoError(t, err)
	m2, err := f.Fit(d2, true)
	require.NoError(t, err)

	assert.InDelta(t, m1.LogLik, m2.LogLik, 1e-7)
	assert.InDelta(t, m1.PenalizedLogLik, m2.PenalizedLogLik, 1e-7)
	// observation i of ds is observation (i+5)%10 of swapped
	for i := range m1.Fitted {
		assert.InDelta(t, m1.Fitted[i], m2.Fitted[(i+5)%10], 1e-6)
	}
}

func TestFitter_ConstrainedAtEstimateReproducesObjective(t *testing.T) {
	d, err := NewBuilder().Build(concreteScenario(), SingleHit)
	require.NoError(t, err)

	f := NewFitter(0, 0, nil)
	for _, biasReduced := range []bool{false, true} {
		m, err := f.Fit(d, biasReduced)
		require.NoError(t, err)

		c, err := d.GroupContrast("B")
		require.NoError(t, err)
		value, _ := m.Contrast(c)

		reduced, err := d.Constrain(c, value)
		require.NoError(t, err)
		rm, err := f.FitFrom(reduced, biasReduced, reduced.Reduce(m.Coefficients))
		require.NoError(t, err)

		assert.InDelta(t, m.Objective(), rm.Objective(), 1e-8, "biasReduced=%v", biasReduced)
		assert.InDeltaSlice(t, m.Coefficients, reduced.Expand(rm.Coefficients), 1e-5)
	}
}

func TestFitter_ConvergenceErrorCarriesLastIterate(t *testing.T) {
	d, err := NewBuilder().Build(concreteScenario(), Full)
	require.NoError(t, err)

	_, err = NewFitter(1, 1e-300, nil).Fit(d, true)
	require.Error(t, err)

	var convErr *core.ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "full", convErr.Model)
	assert.Equal(t, 1, convErr.Iterations)
	assert.Len(t, convErr.Coefficients, 4)
}

func TestFitter_IsDeterministic(t *testing.T) {
	d, err := NewBuilder().Build(concreteScenario(), Full)
	require.NoError(t, err)

	f := NewFitter(0, 0, nil)
	a, err := f.Fit(d, true)
	require.NoError(t, err)
	b, err := f.Fit(d, true)
	require.NoError(t, err)

	assert.Equal(t, a.Coefficients, b.Coefficients)
	assert.Equal(t, a.Deviance, b.Deviance)
}
