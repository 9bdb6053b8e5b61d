package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mrlokans/congregate/internal/config"
	"github.com/mrlokans/congregate/internal/services"
)

// TablesCommand lists the tables of a legacy dataset and whether they can be
// imported.
type TablesCommand struct {
	Config     *config.Config
	LegacyPath string
}

func newTablesCmd(global *globalOptions) *cobra.Command {
	var c TablesCommand

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List legacy tables in import order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.config(cmd)
			if err != nil {
				return err
			}
			c.Config = cfg
			return c.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&c.LegacyPath, "legacy", "", "Legacy dataset path (overrides LEGACY_PATH)")
	return cmd
}

func (c *TablesCommand) Run(ctx context.Context, out io.Writer) error {
	env, err := openEnvironment(c.Config, false)
	if err != nil {
		return err
	}
	defer env.Close()

	plans, err := env.service.Plan(ctx, services.ImportRequest{LegacyPath: c.LegacyPath})
	if err != nil {
		return err
	}
	printPlan(out, plans)
	return nil
}

func printPlan(out io.Writer, plans []services.TablePlan) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS\tPRESENT\tSUPPORTED")
	for _, p := range plans {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", p.Table, p.Rows, yesNo(p.Present), yesNo(p.Supported))
	}
	w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
