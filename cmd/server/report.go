package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"covidboard/internal/config"
	"covidboard/internal/engine"
	"covidboard/internal/export"
	"covidboard/internal/logging"
	"covidboard/internal/models"
	"covidboard/internal/render"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the dashboard for one selection and exit",
	Example: `  covidboard report --country Kenya,Uganda --start 2021-01-01 --end 2021-06-30
  covidboard report --preset east-africa -o json`,

	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := reportCriteriaOptions(cmd)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		raw, _ := cmd.Flags().GetInt("raw")

		presets, err := loadPresets(cfg.Data.Presets)
		if err != nil {
			return err
		}
		store, err := loadDataset(cfg.Data.Path)
		if err != nil {
			return err
		}
		return runReport(cmd.OutOrStdout(), store, presets, opts, output, raw)
	},
}

func init() {
	reportCmd.Flags().StringSlice("country", nil, "Countries to include, comma separated or repeated; quote names containing commas (default all)")
	reportCmd.Flags().String("start", "", "First date to include, YYYY-MM-DD (default earliest in the dataset)")
	reportCmd.Flags().String("end", "", "Last date to include, YYYY-MM-DD (default latest in the dataset)")
	reportCmd.Flags().String("preset", "", "Named selection from the presets file")
	reportCmd.Flags().Bool("strict", false, "Fail on countries that are not in the dataset")
	reportCmd.Flags().StringP("output", "o", "text", "Output format: text, json or csv")
	reportCmd.Flags().Int("raw", 0, "Also print the first N filtered records (-1 for all)")
}

func reportCriteriaOptions(cmd *cobra.Command) (criteriaOptions, error) {
	var opts criteriaOptions
	var err error
	flags := cmd.Flags()
	if opts.Countries, err = flags.GetStringSlice("country"); err != nil {
		return opts, err
	}
	opts.CountriesSet = flags.Changed("country")
	opts.Start, _ = flags.GetString("start")
	opts.End, _ = flags.GetString("end")
	opts.Preset, _ = flags.GetString("preset")
	opts.Strict, _ = flags.GetBool("strict")
	return opts, nil
}

func runReport(w io.Writer, store *engine.ColumnStore, presets []config.Preset, opts criteriaOptions, output string, raw int) error {
	crit, err := buildCriteria(store, presets, opts)
	if err != nil {
		return err
	}
	view, err := engine.Filter(store.All(), crit)
	if err != nil {
		return err
	}
	logger.Debug().
		Strs("countries", crit.Countries).
		Stringer("start", crit.Start).
		Stringer("end", crit.End).
		Int("rows", view.Len()).
		Msg("filtered")

	switch output {
	case "csv":
		return export.WriteCSV(w, view)
	case "text", "json":
	default:
		return errors.Errorf("unknown output format %q", output)
	}

	data := engine.Aggregate(view)
	data.Criteria = crit

	var records []models.Record
	if raw != 0 {
		records = view.Records(0, raw)
	}
	return render.NewReportWriter(w, output, isTerminalWriter(w)).Write(data, records)
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && logging.IsTerminal(f)
}
