package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrlokans/congregate/internal/config"
)

// KeysCommand prints a summary of the person key index of the destination.
type KeysCommand struct {
	Config *config.Config
}

func newKeysCmd(global *globalOptions) *cobra.Command {
	var c KeysCommand

	return &cobra.Command{
		Use:   "keys",
		Short: "Summarize the people already imported into the destination",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.config(cmd)
			if err != nil {
				return err
			}
			c.Config = cfg
			return c.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func (c *KeysCommand) Run(ctx context.Context, out io.Writer) error {
	env, err := openEnvironment(c.Config, false)
	if err != nil {
		return err
	}
	defer env.Close()

	stats, err := env.service.Keys(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "People:     %d\n", stats.People)
	fmt.Fprintf(out, "Households: %d\n", stats.Households)
	fmt.Fprintf(out, "Visitors:   %d\n", stats.Visitors)
	return nil
}
