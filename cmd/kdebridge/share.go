package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/kdebridge/internal/protocol"
	"github.com/five82/kdebridge/internal/session"
)

func newShareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "share <device> <url>",
		Short: "Send a link to a device by id or name",
		Args:  cobra.ExactArgs(2),
		RunE:  runShare,
	}
}

func runShare(cmd *cobra.Command, args []string) error {
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
	if st.Connection != string(session.Connected) {
		return fmt.Errorf("native host not connected (%s)", st.Connection)
	}
	dev, err := resolveDevice(st.Devices, args[0])
	if err != nil {
		return err
	}
	if !dev.Actionable() {
		return fmt.Errorf("device %s is not reachable", dev.Name)
	}
	if err := c.Share(ctx, dev.ID, args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", dev.Name)
	return nil
}

// resolveDevice matches an id exactly, then a name case-insensitively.
func resolveDevice(devices map[string]protocol.Device, query string) (protocol.Device, error) {
	if dev, ok := devices[query]; ok {
		return dev, nil
	}
	var found []protocol.Device
	for _, dev := range protocol.SortedDevices(devices) {
		if strings.EqualFold(dev.Name, query) {
			found = append(found, dev)
		}
	}
	switch len(found) {
	case 0:
		return protocol.Device{}, fmt.Errorf("no device %q", query)
	case 1:
		return found[0], nil
	default:
		return protocol.Device{}, fmt.Errorf("%d devices named %q, use the id", len(found), query)
	}
}
