package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"goelda/adapters/excel"
	"goelda/adapters/postgres"
	"goelda/adapters/stats/engine"
	"goelda/domain/dilution"
	"goelda/internal"
	"goelda/internal/config"
	"goelda/internal/dataset"
	"goelda/internal/errors"
	"goelda/internal/migration"
	"goelda/internal/report"
	"goelda/internal/testkit"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:           "goelda",
		Short:         "Limiting dilution analysis: stem-cell frequency estimates and tests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal; the environment may be set directly.
			_ = godotenv.Load()
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			*cfg = *loaded
			return nil
		},
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(cfg),
		newSimulateCmd(),
		newMigrateCmd(cfg),
	)
	return rootCmd
}

func newAnalyzeCmd(cfg *config.Config) *cobra.Command {
	var (
		confidence float64
		wald       bool
		observed   bool
		workers    int
		format     string
		output     string
		save       bool
		duplicates string
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Estimate frequencies and run the tests for CSV or XLSX tables",
		Long: `Read tables with columns dose, responded, tested and group, fit the
single-hit model and report frequency estimates, tests and pairwise comparisons.
Several files are analysed as one experiment. Use "-" to read CSV from
standard input.

Example: goelda analyze plate1.xlsx plate2.xlsx --duplicates pool --format markdown`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cfg.Analysis.Options()
			if cmd.Flags().Changed("confidence") {
				opts.ConfidenceLevel = confidence
			}
			if wald {
				opts.IntervalMethod = dilution.IntervalWald
			}
			if observed {
				opts.BiasReduced = false
			}
			if cmd.Flags().Changed("workers") {
				opts.Workers = workers
			}
			outFormat, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			policy, err := dataset.ParseDuplicatePolicy(duplicates)
			if err != nil {
				return err
			}
			ds, err := readDatasets(args, cmd.InOrStdin(), policy)
			if err != nil {
				return err
			}

			bundle, err := engine.NewEngine(opts, internal.DefaultLogger).Run(cmd.Context(), ds)
			if err != nil {
				return err
			}

			if save {
				if err := saveBundle(cmd.Context(), cfg, bundle); err != nil {
					return err
				}
			}
			return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				return render(w, bundle, outFormat)
			})
		},
	}

	cmd.Flags().Float64Var(&confidence, "confidence", 0.95, "Confidence level for frequency intervals")
	cmd.Flags().BoolVar(&wald, "wald", false, "Use Wald instead of profile-likelihood intervals")
	cmd.Flags().BoolVar(&observed, "observed", false, "Use plain maximum likelihood instead of bias-reduced estimation")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent pairwise comparisons (0 = unbounded)")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, markdown or html")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of standard output")
	cmd.Flags().BoolVar(&save, "save", false, "Store the result bundle in DATABASE_URL")
	cmd.Flags().StringVar(&duplicates, "duplicates", "keep", "Repeated group and dose across files: keep, pool or error")

	return cmd
}

func newSimulateCmd() *cobra.Command {
	var (
		groups string
		doses  string
		tested int
		seed   int64
		slope  float64
		output string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic dilution table from known frequencies",
		Long: `Simulate an assay in which group NAME has one responding unit in ONE_IN cells.

Example: goelda simulate --groups A=100,B=500 --doses 10,50,100,500 --tested 24 --seed 42 -o assay.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := testkit.ParseGroupSpecs(groups)
			if err != nil {
				return err
			}
			doseList, err := testkit.ParseDoses(doses)
			if err != nil {
				return err
			}

			ds, err := testkit.GenerateDilution(testkit.GeneratorConfig{
				Groups: specs,
				Doses:  doseList,
				Tested: tested,
				Seed:   seed,
				Slope:  slope,
			})
			if err != nil {
				return err
			}

			if strings.EqualFold(filepath.Ext(output), ".xlsx") {
				return testkit.WriteXLSX(output, ds)
			}
			return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				return testkit.EncodeCSV(w, ds)
			})
		},
	}

	def := testkit.DefaultGeneratorConfig()
	cmd.Flags().StringVar(&groups, "groups", "A=100,B=500", "Groups as NAME=ONE_IN pairs")
	cmd.Flags().StringVar(&doses, "doses", "10,50,100,500", "Comma-separated cells per culture")
	cmd.Flags().IntVar(&tested, "tested", def.Tested, "Cultures per dose")
	cmd.Flags().Int64Var(&seed, "seed", def.Seed, "Random seed for deterministic output")
	cmd.Flags().Float64Var(&slope, "slope", def.Slope, "Dose exponent; 1 is single-hit")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a .csv or .xlsx file instead of standard output")

	return cmd
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the result store schema in DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema version", migration.NewRunner().Version())
			return nil
		},
	}
}

func readDataset(path string, stdin io.Reader) (dilution.Dataset, error) {
	if path == "-" {
		return excel.ParseCSV(stdin)
	}
	return excel.NewDataReader(path).ReadDataset()
}

// readDatasets reads every path and merges them in argument order.
func readDatasets(paths []string, stdin io.Reader, policy dataset.DuplicatePolicy) (dilution.Dataset, error) {
	tables := make([]dilution.Dataset, 0, len(paths))
	for _, path := range paths {
		ds, err := readDataset(path, stdin)
		if err != nil {
			return dilution.Dataset{}, fmt.Errorf("%s: %w", path, err)
		}
		tables = append(tables, ds)
	}
	merged, err := dataset.Merge(policy, tables...)
	if err != nil {
		return dilution.Dataset{}, err
	}
	if merged.DuplicatesFound > 0 {
		internal.DefaultLogger.Info("merged %d tables: %d repeated group/dose rows (%s)", merged.Tables, merged.DuplicatesFound, policy)
	}
	return merged.Dataset, nil
}

func render(w io.Writer, bundle *dilution.Bundle, format report.Format) error {
	switch format {
	case report.FormatMarkdown:
		_, err := io.WriteString(w, report.Markdown(bundle))
		return err
	case report.FormatHTML:
		_, err := w.Write(report.HTML(bundle))
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(bundle)
	}
}

// writeOutput sends write to path, or to stdout when path is empty.
func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// openDatabase connects to DATABASE_URL and brings the schema up to date.
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Database.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}

func saveBundle(ctx context.Context, cfg *config.Config, bundle *dilution.Bundle) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return postgres.NewAnalysisRepository(db).Save(ctx, bundle)
}
