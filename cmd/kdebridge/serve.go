package main

import (
	"github.com/spf13/cobra"

	"github.com/five82/kdebridge/internal/app"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge daemon",
		Long: "Run the bridge daemon. It keeps the native host running, reconnecting\n" +
			"with backoff when it exits, and serves UI surfaces on the listen address.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listen, _ := cmd.Flags().GetString("listen")
			hostPath, _ := cmd.Flags().GetString("host")
			return app.Run(cmd.Context(), app.Options{
				ConfigPath: configPath(cmd),
				Listen:     listen,
				HostPath:   hostPath,
				Stderr:     cmd.ErrOrStderr(),
			})
		},
	}
	cmd.Flags().String("listen", "", "override listen address")
	cmd.Flags().String("host", "", "native host executable (skips manifest lookup)")
	return cmd
}
