package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mrlokans/congregate/internal/config"
	"github.com/mrlokans/congregate/internal/importers"
	"github.com/mrlokans/congregate/internal/progress"
	"github.com/mrlokans/congregate/internal/services"
)

// ImportCommand imports a legacy dataset into the destination.
type ImportCommand struct {
	Config      *config.Config
	LegacyPath  string
	Tables      []string
	Threshold   int
	StopOnError bool
	DryRun      bool
	Verbose     bool
}

func newImportCmd(global *globalOptions) *cobra.Command {
	var c ImportCommand

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import legacy tables into the destination",
		Long: `Reads the legacy dataset (a SQLite snapshot or a directory of CSV, TSV or
XLSX extracts) and imports the selected tables in dependency order. With no
--tables every supported table present in the dataset is imported.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.config(cmd)
			if err != nil {
				return err
			}
			c.Config = cfg
			c.Verbose = global.verbose
			return c.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&c.LegacyPath, "legacy", "", "Legacy dataset path (overrides LEGACY_PATH)")
	flags.StringSliceVar(&c.Tables, "tables", nil, "Comma separated legacy tables to import")
	flags.IntVar(&c.Threshold, "threshold", 0, "Records per flush (overrides IMPORT_THRESHOLD)")
	flags.BoolVar(&c.StopOnError, "stop-on-error", false, "Abort on the first failing table")
	flags.BoolVar(&c.DryRun, "dry-run", false, "Show what would be imported without writing")
	return cmd
}

// Run executes the import and prints a summary to out.
func (c *ImportCommand) Run(ctx context.Context, out io.Writer) error {
	if c.StopOnError {
		c.Config.Import.StopOnError = true
	}
	env, err := openEnvironment(c.Config, c.Verbose)
	if err != nil {
		return err
	}
	defer env.Close()

	req := services.ImportRequest{
		LegacyPath: c.LegacyPath,
		Tables:     c.Tables,
		Threshold:  c.Threshold,
		Trigger:    services.TriggerCLI,
	}

	if c.DryRun {
		plans, err := env.service.Plan(ctx, req)
		if err != nil {
			return err
		}
		printPlan(out, plans)
		return nil
	}

	reporter := progress.NewLogReporter(logrus.WithField("component", "import"))
	summary, err := env.service.Run(ctx, req, reporter)
	printSummary(out, summary)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return errors.Errorf("%d tables failed", summary.Failed)
	}
	return nil
}

func printSummary(out io.Writer, summary importers.Summary) {
	if summary.RunID == "" {
		return
	}
	fmt.Fprintf(out, "Run %s\n", summary.RunID)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tCOMPLETED\tSKIPPED\tSTATUS")
	for _, t := range summary.Tables {
		status := "ok"
		switch {
		case t.NotSupported:
			status = "not supported"
		case t.Error != "":
			status = "failed: " + t.Error
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", t.Table, t.Completed, t.Skipped, status)
	}
	w.Flush()
	fmt.Fprintf(out, "Imported %d records in %s\n", summary.Completed(), summary.Duration.Round(time.Millisecond))
}
