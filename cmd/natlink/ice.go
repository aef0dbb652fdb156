package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	natlink "github.com/dep2p/go-natlink"
	"github.com/dep2p/go-natlink/internal/core/coord"
	"github.com/dep2p/go-natlink/pkg/types"
)

// sdpKey 客户端记录中携带 base64 本地描述的键
const sdpKey = "sdp"

func newICECommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ice",
		Short: "Connect to a peer over ICE, exchanging descriptions through a coordination host",
		Long: `Both peers register with the same coordination host under their --id and publish
their local description under the "sdp" key. Each side polls the host for the
other's description, then the ICE agents converge on a datagram path and the
peers exchange a greeting every second.`,
		Args: cobra.NoArgs,
		RunE: iceAction,
	}
	cmd.Flags().String("host", "", "Coordination host endpoint (host:port)")
	cmd.Flags().Uint("id", 0, "Own id in the host table")
	cmd.Flags().Uint("peer", 0, "Peer id in the host table")
	cmd.Flags().String("stun", "", "STUN server host:port (overrides config)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("peer")
	return cmd
}

func iceAction(cmd *cobra.Command, _ []string) error {
	cfg, err := clientConfig(cmd)
	if err != nil {
		return err
	}
	if s, _ := cmd.Flags().GetString("stun"); s != "" {
		ep, err := types.ResolveEndpoint(s)
		if err != nil {
			return fmt.Errorf("--stun: %w", err)
		}
		cfg.NAT.STUNHost = ep.Addr().String()
		cfg.NAT.STUNPort = ep.Port()
	}
	id, _ := cmd.Flags().GetUint("id")
	peer, _ := cmd.Flags().GetUint("peer")
	if id == peer {
		return fmt.Errorf("--id and --peer must differ")
	}
	peerQuery := fmt.Sprintf("SELECT %s FROM %s WHERE id = %d", sdpKey, cfg.Coord.Table, peer)

	return runApp(cmd, cfg, natlink.RoleClient, func(ctx context.Context, app *natlink.App) error {
		s, err := app.NAT().NewSession()
		if err != nil {
			return err
		}
		defer app.NAT().Release(s)
		log.Info("ICE 会话已创建", "session", s.ID(), "id", id, "peer", peer)

		c := app.Client()
		if err := c.SetKey("id", strconv.FormatUint(uint64(id), 10)); err != nil {
			return err
		}
		remote := make(chan string, 1)
		c.SetResponseHandler(func(rows []types.Row) {
			for _, r := range rows {
				if v := r[sdpKey]; v != "" {
					select {
					case remote <- v:
					default:
					}
					return
				}
			}
		})

		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		buf := make([]byte, 64*1024)
		published := false
		var lastAsk, lastHello time.Time

		for {
			select {
			case <-ctx.Done():
				return nil

			case desc := <-remote:
				if s.HasRemoteDescription() {
					continue
				}
				if err := s.SetRemoteDescriptionBase64(desc); err != nil {
					log.Warn("对端描述无效", "peer", peer, "error", err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "got description of peer %d, connecting\n", peer)

			case now := <-ticker.C:
				if s.HasProblem() {
					return fmt.Errorf("ice session %s failed in state %s", s.ID(), s.State())
				}
				if !published && s.IsReady() {
					local := s.LocalDescriptionBase64()
					values := c.Values()
					values[sdpKey] = local
					if _, err := coord.EncodeRecord(values); err != nil {
						return fmt.Errorf("local description does not fit in a datagram: %w", err)
					}
					if err := c.SetKey(sdpKey, local); err != nil {
						return err
					}
					published = true
					log.Info("本地描述已发布", "bytes", len(local))
				}
				if published && !s.HasRemoteDescription() && now.Sub(lastAsk) >= time.Second {
					lastAsk = now
					if err := c.SQLRequest(peerQuery); err != nil {
						log.Debug("查询对端描述失败", "error", err)
					}
				}
				if !s.IsConnected() {
					continue
				}
				if now.Sub(lastHello) >= time.Second {
					lastHello = now
					msg := fmt.Sprintf("hello from %d at %s", id, now.Format(time.RFC3339))
					if _, err := s.Send([]byte(msg)); err != nil {
						log.Debug("发送失败", "error", err)
					}
				}
				for {
					n, err := s.Receive(buf)
					if err != nil || n == 0 {
						break
					}
					fmt.Fprintf(cmd.OutOrStdout(), "peer %d: %s\n", peer, buf[:n])
				}
			}
		}
	})
}
