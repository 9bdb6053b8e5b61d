package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/congregate/internal/entrypoint"
)

func newServeCmd(global *globalOptions, version string) *cobra.Command {
	var port int32

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the task queue and the import schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.config(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTP.Port = port
			}
			return entrypoint.Run(cmd.Context(), cfg, version)
		},
	}
	cmd.Flags().Int32Var(&port, "port", 8190, "HTTP port (overrides PORT)")
	return cmd
}
