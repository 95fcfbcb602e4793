package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/kdebridge/internal/client"
	"github.com/five82/kdebridge/internal/config"
	"github.com/five82/kdebridge/internal/protocol"
	"github.com/five82/kdebridge/internal/session"
)

const requestTimeout = 3 * time.Second

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's view of the host, devices and menu",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	cmd.Flags().Bool("json", false, "Output in JSON format")
	return cmd
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return client.NewClient(cfg.Listen)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	st, err := c.FetchState(ctx)
	if err != nil {
		return fmt.Errorf("daemon not reachable: %w", err)
	}

	if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	printState(cmd.OutOrStdout(), *st)
	return nil
}

func printState(out io.Writer, st protocol.BridgeState) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "host\t%s\n", st.Connection)
	if st.Connection != string(session.Connected) {
		fmt.Fprintf(w, "reconnect delay\t%s\n", st.ReconnectDelay)
	}
	proto := st.Negotiation
	if st.RemoteVersion != "" {
		proto = fmt.Sprintf("%s (host %s, want %s)", st.Negotiation, st.RemoteVersion, st.ExpectedVersion)
	}
	fmt.Fprintf(w, "protocol\t%s\n", proto)
	badge := "(none)"
	if st.Badge.Text != "" {
		badge = fmt.Sprintf("%q from %s", st.Badge.Text, st.Badge.Source)
	}
	fmt.Fprintf(w, "badge\t%s\n", badge)
	fmt.Fprintf(w, "surfaces\t%d\n", st.Surfaces)

	for _, s := range st.Statuses {
		text := s.Error
		if text == "" {
			text = s.Update
		}
		fmt.Fprintf(w, "status %s\t%s\n", s.Key, text)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "DEVICE\tNAME\tREACHABLE\tTRUSTED")
	for _, d := range protocol.SortedDevices(st.Devices) {
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\n", d.ID, d.Name, d.IsReachable, d.IsTrusted)
	}

	if len(st.Menu) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "MENU\tTITLE\tENABLED")
		for _, e := range st.Menu {
			id := e.ID
			if e.ParentID != "" {
				id = "  " + id
			}
			fmt.Fprintf(w, "%s\t%s\t%t\n", id, e.Title, e.Enabled)
		}
	}
}
