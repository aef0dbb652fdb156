package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	natlink "github.com/dep2p/go-natlink"
	"github.com/dep2p/go-natlink/config"
	"github.com/dep2p/go-natlink/pkg/types"
)

func newClientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Register key/value state with a coordination host",
		Args:  cobra.NoArgs,
		RunE:  clientAction,
	}
	cmd.Flags().String("host", "", "Coordination host endpoint (host:port)")
	cmd.Flags().StringToString("set", nil, "Key/value pushed to the host (repeatable)")
	return cmd
}

func newQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query SQL",
		Short: "Run a query on a coordination host and print the rows as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  queryAction,
	}
	cmd.Flags().String("host", "", "Coordination host endpoint (host:port)")
	cmd.Flags().Duration("timeout", 5*time.Second, "How long to wait for rows")
	return cmd
}

// clientConfig 加载配置并应用 --host
func clientConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if h, _ := cmd.Flags().GetString("host"); h != "" {
		cfg.Coord.HostEndpoint = h
	}
	if cfg.Coord.HostEndpoint == "" {
		return nil, fmt.Errorf("--host is required")
	}
	return cfg, nil
}

func clientAction(cmd *cobra.Command, _ []string) error {
	cfg, err := clientConfig(cmd)
	if err != nil {
		return err
	}
	values, _ := cmd.Flags().GetStringToString("set")

	return runApp(cmd, cfg, natlink.RoleClient, func(ctx context.Context, app *natlink.App) error {
		c := app.Client()
		for k, v := range values {
			if err := c.SetKey(k, v); err != nil {
				return err
			}
		}

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		connected := false
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if now := c.IsConnected(); now != connected {
					connected = now
					fmt.Fprintf(cmd.OutOrStdout(), "connected=%v server_time=%q\n", connected, c.ServerTime())
				}
			}
		}
	})
}

func queryAction(cmd *cobra.Command, args []string) error {
	cfg, err := clientConfig(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	return runApp(cmd, cfg, natlink.RoleClient, func(ctx context.Context, app *natlink.App) error {
		c := app.Client()
		results := make(chan []types.Row, 1)
		c.SetResponseHandler(func(rows []types.Row) {
			select {
			case results <- rows:
			default:
			}
		})
		if err := c.SQLRequest(args[0]); err != nil {
			return err
		}

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		var rows []types.Row
		select {
		case <-ctx.Done():
			return nil
		case rows = <-results:
		case <-timer.C:
			// 空结果不触发回调：收到过 SERVERTIME 即视为成功
			if !c.IsConnected() {
				return fmt.Errorf("no reply from %s within %v", c.HostEndpoint(), timeout)
			}
			rows = []types.Row{}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	})
}
