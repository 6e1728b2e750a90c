package testkit

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"goelda/domain/dilution"

	"github.com/xuri/excelize/v2"
)

// GroupSpec is one simulated population: one responding unit in OneIn cells.
type GroupSpec struct {
	Name  string
	OneIn float64
}

// GeneratorConfig describes a synthetic limiting-dilution experiment. Every
// group is assayed at every dose with Tested cultures per dose.
type GeneratorConfig struct {
	Groups []GroupSpec
	Doses  []float64
	Tested int
	Seed   int64

	// Slope is the exponent on dose; 1 is the single-hit model.
	Slope float64
}

// DefaultGeneratorConfig returns a two-group design with a five-fold
// difference in frequency.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Groups: []GroupSpec{{Name: "A", OneIn: 100}, {Name: "B", OneIn: 500}},
		Doses:  []float64{10, 50, 100, 500},
		Tested: 24,
		Seed:   42,
		Slope:  1,
	}
}

// Validate checks that the configuration can produce a valid dataset
func (c GeneratorConfig) Validate() error {
	if len(c.Groups) == 0 {
		return fmt.Errorf("at least one group is required")
	}
	if len(c.Doses) == 0 {
		return fmt.Errorf("at least one dose is required")
	}
	if c.Tested <= 0 {
		return fmt.Errorf("tested must be > 0")
	}
	seen := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("group name must not be blank")
		}
		if seen[g.Name] {
			return fmt.Errorf("duplicate group %q", g.Name)
		}
		seen[g.Name] = true
		if !(g.OneIn > 0) || math.IsInf(g.OneIn, 0) {
			return fmt.Errorf("group %q: frequency must be positive and finite", g.Name)
		}
	}
	for _, d := range c.Doses {
		if !(d > 0) || math.IsInf(d, 0) {
			return fmt.Errorf("dose %v must be positive and finite", d)
		}
	}
	return nil
}

// ResponseProbability is 1 - exp(-dose^slope / oneIn).
func ResponseProbability(dose, oneIn, slope float64) float64 {
	return -math.Expm1(-math.Pow(dose, slope) / oneIn)
}

// GenerateDilution simulates the experiment. The same config always yields
// the same dataset.
func GenerateDilution(cfg GeneratorConfig) (dilution.Dataset, error) {
	if cfg.Slope == 0 {
		cfg.Slope = 1
	}
	if err := cfg.Validate(); err != nil {
		return dilution.Dataset{}, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	obs := make([]dilution.Observation, 0, len(cfg.Groups)*len(cfg.Doses))
	for _, g := range cfg.Groups {
		for _, dose := range cfg.Doses {
			p := ResponseProbability(dose, g.OneIn, cfg.Slope)
			responded := 0
			for k := 0; k < cfg.Tested; k++ {
				if rng.Float64() < p {
					responded++
				}
			}
			obs = append(obs, dilution.Observation{Dose: dose, Responded: responded, Tested: cfg.Tested, Group: g.Name})
		}
	}
	return dilution.NewDataset(obs), nil
}

// ParseGroupSpecs parses "A=100,B=500" into group specs, keeping order.
func ParseGroupSpecs(s string) ([]GroupSpec, error) {
	var specs []GroupSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("group %q: expected NAME=ONE_IN", part)
		}
		oneIn, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", part, err)
		}
		specs = append(specs, GroupSpec{Name: strings.TrimSpace(name), OneIn: oneIn})
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no groups in %q", s)
	}
	return specs, nil
}

// ParseDoses parses a comma-separated list of doses.
func ParseDoses(s string) ([]float64, error) {
	var doses []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("dose %q: %w", part, err)
		}
		doses = append(doses, d)
	}
	return doses, nil
}

// Headers are the column names written by WriteCSV and WriteXLSX.
var Headers = []string{"dose", "responded", "tested", "group"}

func rowsOf(ds dilution.Dataset) [][]string {
	rows := make([][]string, 0, ds.Len())
	for _, o := range ds.Observations {
		rows = append(rows, []string{
			strconv.FormatFloat(o.Dose, 'g', -1, 64),
			strconv.Itoa(o.Responded),
			strconv.Itoa(o.Tested),
			o.Group,
		})
	}
	return rows
}

// WriteCSV writes ds with a header row.
func WriteCSV(path string, ds dilution.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeCSV(f, ds)
}

// EncodeCSV writes ds as CSV to w.
func EncodeCSV(w io.Writer, ds dilution.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(rowsOf(ds)); err != nil {
		return err
	}
	return cw.Error()
}

// WriteXLSX writes ds to Sheet1 of a new workbook.
func WriteXLSX(path string, ds dilution.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, o := range ds.Observations {
		values := []interface{}{o.Dose, o.Responded, o.Tested, o.Group}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return f.SaveAs(path)
}
