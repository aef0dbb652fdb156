package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-natlink/internal/core/netinfo"
)

func newIfacesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ifaces",
		Short: "Show host name, IPv4 interfaces and the STUN-reflexive address",
		Args:  cobra.NoArgs,
		RunE:  ifacesAction,
	}
	cmd.Flags().String("prefix", "", "Only interfaces whose name starts with this prefix, e.g. eth")
	cmd.Flags().Bool("loopback", false, "Include loopback interfaces")
	cmd.Flags().Bool("stun", true, "Query the configured STUN servers for the external address")
	return cmd
}

func ifacesAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ncfg := netinfo.ConfigFromUnified(cfg)
	if p, _ := cmd.Flags().GetString("prefix"); p != "" {
		ncfg.InterfacePrefix = p
	}
	opts := ncfg.DiscoverOptions()
	if lo, _ := cmd.Flags().GetBool("loopback"); lo {
		opts = append(opts, netinfo.WithLoopback())
	}

	info, err := netinfo.Discover(opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "hostname: %s\n", info.Hostname)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tNETMASK\tBROADCAST\tMTU")
	for _, i := range info.Interfaces {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", i.Name, i.Addr, i.Netmask(), i.Broadcast, i.MTU)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if q, _ := cmd.Flags().GetBool("stun"); !q {
		return nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 3*ncfg.STUNTimeout+5*time.Second)
	defer cancel()
	ep, err := ncfg.NewSTUNClient(netinfo.WithRetries(1)).ExternalEndpoint(ctx)
	if err != nil {
		fmt.Fprintf(out, "external: unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "external: %s\n", ep)
	return nil
}
