package dilution

import (
	"errors"
	"testing"

	"goelda/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return NewDataset([]Observation{
		{Dose: 10, Responded: 1, Tested: 10, Group: "B"},
		{Dose: 10, Responded: 3, Tested: 10, Group: "A"},
		{Dose: 50, Responded: 4, Tested: 10, Group: "B"},
		{Dose: 50, Responded: 9, Tested: 10, Group: "A"},
		{Dose: 20, Responded: 2, Tested: 10, Group: "C"},
	})
}

func TestDataset_GroupsInFirstAppearanceOrder(t *testing.T) {
	assert.Equal(t, []string{"B", "A", "C"}, sampleDataset().Groups())
}

func TestDataset_RestrictCopiesAndPreservesOrder(t *testing.T) {
	ds := sampleDataset()
	sub := ds.Restrict("A", "B")

	require.Equal(t, 4, sub.Len())
	assert.Equal(t, []string{"B", "A"}, sub.Groups())

	sub.Observations[0].Responded = 99
	assert.Equal(t, 1, ds.Observations[0].Responded, "restricted dataset must not alias the original")
}

func TestNewDataset_CopiesInput(t *testing.T) {
	obs := []Observation{{Dose: 1, Responded: 0, Tested: 1, Group: "A"}}
	ds := NewDataset(obs)
	obs[0].Group = "Z"
	assert.Equal(t, "A", ds.Observations[0].Group)
}

func TestDataset_Validate(t *testing.T) {
	cases := []struct {
		name  string
		obs   []Observation
		field string
	}{
		{"empty", nil, "observations"},
		{"blank group", []Observation{{Dose: 1, Responded: 0, Tested: 1, Group: " "}}, "group"},
		{"zero dose", []Observation{{Dose: 0, Responded: 0, Tested: 1, Group: "A"}}, "dose"},
		{"zero tested", []Observation{{Dose: 1, Responded: 0, Tested: 0, Group: "A"}}, "tested"},
		{"negative responded", []Observation{{Dose: 1, Responded: -1, Tested: 1, Group: "A"}}, "responded"},
		{"too many responded", []Observation{{Dose: 1, Responded: 3, Tested: 2, Group: "A"}}, "responded"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewDataset(tc.obs).Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInputValidation))

			var ive *core.InputValidationError
			require.True(t, errors.As(err, &ive))
			assert.Equal(t, tc.field, ive.Field)
		})
	}

	assert.NoError(t, sampleDataset().Validate())
}

func TestDataset_FingerprintIgnoresWorkers(t *testing.T) {
	ds := sampleDataset()
	a := DefaultOptions()
	b := DefaultOptions()
	b.Workers = a.Workers + 7

	assert.Equal(t, ds.Fingerprint(a), ds.Fingerprint(b))

	b.ConfidenceLevel = 0.9
	assert.NotEqual(t, ds.Fingerprint(a), ds.Fingerprint(b))
}

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	bad := DefaultOptions()
	bad.ConfidenceLevel = 1
	assert.Error(t, bad.Validate())

	bad = DefaultOptions()
	bad.IntervalMethod = "bootstrap"
	assert.Error(t, bad.Validate())

	bad = DefaultOptions()
	bad.Tolerance = 0
	assert.Error(t, bad.Validate())
}

func TestParseIntervalMethod(t *testing.T) {
	m, err := ParseIntervalMethod(" WALD ")
	require.NoError(t, err)
	assert.Equal(t, IntervalWald, m)

	m, err = ParseIntervalMethod("profile-likelihood")
	require.NoError(t, err)
	assert.Equal(t, IntervalProfile, m)

	_, err = ParseIntervalMethod("score")
	assert.Error(t, err)
}
