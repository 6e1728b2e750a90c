package testkit

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerateDilution_Deterministic(t *testing.T) {
	cfg := DefaultGeneratorConfig()

	first, err := GenerateDilution(cfg)
	require.NoError(t, err)
	second, err := GenerateDilution(cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, len(cfg.Groups)*len(cfg.Doses), first.Len())
	assert.Equal(t, []string{"A", "B"}, first.Groups())
	require.NoError(t, first.Validate())
}

func TestGenerateDilution_ResponsesWithinTested(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.Seed = 7
	ds, err := GenerateDilution(cfg)
	require.NoError(t, err)

	for _, o := range ds.Observations {
		assert.GreaterOrEqual(t, o.Responded, 0)
		assert.LessOrEqual(t, o.Responded, o.Tested)
		assert.Equal(t, cfg.Tested, o.Tested)
	}
}

func TestGenerateDilution_HighDoseSaturates(t *testing.T) {
	cfg := GeneratorConfig{
		Groups: []GroupSpec{{Name: "rich", OneIn: 1}},
		Doses:  []float64{1000},
		Tested: 50,
		Seed:   1,
	}
	ds, err := GenerateDilution(cfg)
	require.NoError(t, err)
	assert.Equal(t, 50, ds.Observations[0].Responded)
}

func TestGeneratorConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GeneratorConfig)
	}{
		{"no groups", func(c *GeneratorConfig) { c.Groups = nil }},
		{"no doses", func(c *GeneratorConfig) { c.Doses = nil }},
		{"zero tested", func(c *GeneratorConfig) { c.Tested = 0 }},
		{"blank name", func(c *GeneratorConfig) { c.Groups[0].Name = " " }},
		{"duplicate name", func(c *GeneratorConfig) { c.Groups[1].Name = c.Groups[0].Name }},
		{"non-positive frequency", func(c *GeneratorConfig) { c.Groups[0].OneIn = 0 }},
		{"negative dose", func(c *GeneratorConfig) { c.Doses[0] = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGeneratorConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResponseProbability(t *testing.T) {
	assert.InDelta(t, 1-0.36787944117144233, ResponseProbability(100, 100, 1), 1e-12)
	assert.InDelta(t, 0, ResponseProbability(1e-12, 100, 1), 1e-12)
}

func TestParseGroupSpecs(t *testing.T) {
	specs, err := ParseGroupSpecs("A=100, B = 2.5e3")
	require.NoError(t, err)
	assert.Equal(t, []GroupSpec{{Name: "A", OneIn: 100}, {Name: "B", OneIn: 2500}}, specs)

	_, err = ParseGroupSpecs("A100")
	assert.Error(t, err)
	_, err = ParseGroupSpecs("A=x")
	assert.Error(t, err)
	_, err = ParseGroupSpecs(" , ")
	assert.Error(t, err)
}

func TestParseDoses(t *testing.T) {
	doses, err := ParseDoses("10,50, 100")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 50, 100}, doses)

	_, err = ParseDoses("10,abc")
	assert.Error(t, err)
}

func TestWriteCSVAndXLSX(t *testing.T) {
	ds, err := GenerateDilution(DefaultGeneratorConfig())
	require.NoError(t, err)
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "assay.csv")
	require.NoError(t, WriteCSV(csvPath, ds))
	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, ds.Len()+1)
	assert.Equal(t, Headers, records[0])
	assert.Equal(t, "A", records[1][3])

	xlsxPath := filepath.Join(dir, "assay.xlsx")
	require.NoError(t, WriteXLSX(xlsxPath, ds))
	wb, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, ds.Len()+1)
	assert.Equal(t, Headers, rows[0])
}
