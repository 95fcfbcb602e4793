package main

import (
	"github.com/spf13/cobra"

	"github.com/five82/kdebridge/internal/app"
)

func newPopupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "popup",
		Short: "Open the device picker",
		Long: "Open the device picker attached to a running daemon. With --url and\n" +
			"default_only set in preferences, the link goes straight to the default device.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			link, _ := cmd.Flags().GetString("url")
			poll, _ := cmd.Flags().GetInt("poll")
			return app.RunPopup(cmd.Context(), app.PopupOptions{
				ConfigPath: configPath(cmd),
				URL:        link,
				PollEvery:  poll,
			})
		},
	}
	cmd.Flags().String("url", "", "link to send")
	cmd.Flags().Int("poll", 0, "state refresh interval in seconds (default 2)")
	return cmd
}
