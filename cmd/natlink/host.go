package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	natlink "github.com/dep2p/go-natlink"
	"github.com/dep2p/go-natlink/pkg/types"
)

func newHostCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Run a coordination host",
		Args:  cobra.NoArgs,
		RunE:  hostAction,
	}
	cmd.Flags().Uint16("listen-port", 9000, "UDP listen port")
	cmd.Flags().String("db", "", "SQLite database file (\":memory:\" for an in-memory store)")
	cmd.Flags().Bool("portmap", false, "Map the listen port on the gateway (UPnP / NAT-PMP)")
	cmd.Flags().Duration("report", 10*time.Second, "Interval between client table dumps (0 disables)")
	return cmd
}

func hostAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen-port") {
		cfg.Coord.ListenPort, _ = cmd.Flags().GetUint16("listen-port")
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Storage.Path = db
	}
	if pm, _ := cmd.Flags().GetBool("portmap"); pm {
		cfg.PortMap.Enabled = true
	}
	report, _ := cmd.Flags().GetDuration("report")

	return runApp(cmd, cfg, natlink.RoleHost, func(ctx context.Context, app *natlink.App) error {
		h := app.Host()
		fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", h.LocalEndpoint())
		if ep := app.ExternalEndpoint(); !ep.IsZero() {
			fmt.Fprintf(cmd.OutOrStdout(), "mapped to %s\n", ep)
		}
		if report <= 0 {
			<-ctx.Done()
			return nil
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		h.SetResponseHandler(func(rows []types.Row) {
			_ = enc.Encode(rows)
		})

		ticker := time.NewTicker(report)
		defer ticker.Stop()
		query := fmt.Sprintf("SELECT * FROM %s", cfg.Coord.Table)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				st := h.Stats()
				log.Info("主机状态", "connected", h.IsConnected(), "received", st.Received, "sent", st.Sent, "dropped", st.Dropped)
				if err := h.SQLRequest(query); err != nil {
					log.Warn("读取客户端表失败", "error", err)
				}
			}
		}
	})
}
