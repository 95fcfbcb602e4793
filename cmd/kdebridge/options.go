package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/kdebridge/internal/config"
	"github.com/five82/kdebridge/internal/prefs"
)

func newOptionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Show or change preferences",
		Long: "Show or change preferences. A running daemon notices the change and\n" +
			"rebuilds its context menu.",
		Args: cobra.NoArgs,
		RunE: runOptions,
	}
	cmd.Flags().String("default-device", "", "device id used by default (empty string clears it)")
	cmd.Flags().Bool("default-only", false, "only offer the default device")
	cmd.Flags().Bool("disable-context-menu", false, "hide the context menu entirely")
	cmd.Flags().String("theme", "", "popup theme")
	return cmd
}

func runOptions(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	p, _ := prefs.Load(cfg.PrefsPath)

	flags := cmd.Flags()
	changed := false
	if flags.Changed("default-device") {
		v, _ := flags.GetString("default-device")
		p.DefaultDeviceID = strings.TrimSpace(v)
		changed = true
	}
	if flags.Changed("default-only") {
		p.DefaultOnly, _ = flags.GetBool("default-only")
		changed = true
	}
	if flags.Changed("disable-context-menu") {
		p.DisableContextMenu, _ = flags.GetBool("disable-context-menu")
		changed = true
	}
	if flags.Changed("theme") {
		p.Theme, _ = flags.GetString("theme")
		changed = true
	}

	if changed {
		if err := prefs.Save(cfg.PrefsPath, p); err != nil {
			return fmt.Errorf("save preferences: %w", err)
		}
	}
	printPrefs(cmd.OutOrStdout(), p)
	return nil
}

func printPrefs(w io.Writer, p prefs.Prefs) {
	device := p.DefaultDeviceID
	if device == "" {
		device = "(none)"
	}
	fmt.Fprintf(w, "default_device_id     %s\n", device)
	fmt.Fprintf(w, "default_only          %t\n", p.DefaultOnly)
	fmt.Fprintf(w, "disable_context_menu  %t\n", p.DisableContextMenu)
	fmt.Fprintf(w, "theme                 %s\n", p.Theme)
}
