package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/five82/kdebridge/internal/config"
	"github.com/five82/kdebridge/internal/logtail"
)

var (
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
	componentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#BD93F9")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
)

func newLogsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the tail of the host log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath(cmd))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			n, _ := cmd.Flags().GetInt("lines")
			path := cfg.HostLogPath()
			if daemon, _ := cmd.Flags().GetBool("daemon"); daemon {
				path = cfg.DaemonLogPath()
			}
			lines, err := logtail.Read(path, n)
			if err != nil {
				return err
			}
			printLogLines(cmd.OutOrStdout(), lines)
			return nil
		},
	}
	cmd.Flags().IntP("lines", "n", 50, "number of lines (0 for all)")
	cmd.Flags().Bool("daemon", false, "show the daemon log instead of the host log")
	return cmd
}

func printLogLines(w io.Writer, lines []string) {
	for _, line := range lines {
		e := logtail.Parse(line)
		msg := e.Message
		if e.IsError() {
			msg = errorStyle.Render(msg)
		}
		switch {
		case e.Timestamp == "":
			fmt.Fprintln(w, msg)
		case e.Component == "":
			fmt.Fprintln(w, timestampStyle.Render(e.Timestamp), msg)
		default:
			fmt.Fprintln(w, timestampStyle.Render(e.Timestamp), componentStyle.Render("["+e.Component+"]"), msg)
		}
	}
}
