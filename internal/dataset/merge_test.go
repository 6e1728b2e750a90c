package dataset

import (
	"testing"

	"goelda/domain/core"
	"goelda/domain/dilution"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plates() (dilution.Dataset, dilution.Dataset) {
	first := dilution.NewDataset([]dilution.Observation{
		{Dose: 100, Responded: 6, Tested: 12, Group: "A"},
		{Dose: 10, Responded: 1, Tested: 12, Group: "A"},
	})
	second := dilution.NewDataset([]dilution.Observation{
		{Dose: 100, Responded: 2, Tested: 12, Group: "B"},
		{Dose: 10, Responded: 0, Tested: 12, Group: "B"},
		{Dose: 100, Responded: 8, Tested: 12, Group: "A"},
	})
	return first, second
}

func TestMerge_KeepAll(t *testing.T) {
	first, second := plates()
	res, err := Merge(KeepAll, first, second)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Tables)
	assert.Equal(t, 5, res.RowCount)
	assert.Equal(t, 1, res.DuplicatesFound)
	assert.Equal(t, []string{"A", "B"}, res.Dataset.Groups())
	assert.Equal(t, 8, res.Dataset.Observations[4].Responded)
}

func TestMerge_Pool(t *testing.T) {
	first, second := plates()
	res, err := Merge(Pool, first, second)
	require.NoError(t, err)

	require.Equal(t, 4, res.RowCount)
	assert.Equal(t, dilution.Observation{Dose: 100, Responded: 14, Tested: 24, Group: "A"}, res.Dataset.Observations[0])
	assert.Equal(t, 1, res.DuplicatesFound)

	// Inputs are untouched.
	assert.Equal(t, 6, first.Observations[0].Responded)
}

func TestMerge_ErrorOnDupes(t *testing.T) {
	first, second := plates()
	_, err := Merge(ErrorOnDupes, first, second)
	require.ErrorIs(t, err, core.ErrInputValidation)

	var verr *core.InputValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Row)
	assert.Contains(t, verr.Error(), "table 2")
}

func TestMerge_ValidatesResult(t *testing.T) {
	_, err := Merge(KeepAll)
	assert.ErrorIs(t, err, core.ErrInputValidation)
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, KeepAll, p)

	p, err = ParseDuplicatePolicy("pool")
	require.NoError(t, err)
	assert.Equal(t, Pool, p)

	_, err = ParseDuplicatePolicy("sum")
	assert.Error(t, err)
}
