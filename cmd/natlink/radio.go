package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-natlink/internal/core/socket"
)

func newRadioCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "radio",
		Short: "Short-range RFCOMM echo test",
	}
	listen := &cobra.Command{
		Use:   "listen",
		Short: "Listen for RFCOMM connections and echo what they send",
		Args:  cobra.NoArgs,
		RunE:  radioListenAction,
	}
	listen.Flags().Bool("bluez", true, "Register the service record with BlueZ over D-Bus")

	connect := &cobra.Command{
		Use:   "connect XX:XX:XX:XX:XX:XX",
		Short: "Connect to a listening peer and send a ping every second",
		Args:  cobra.ExactArgs(1),
		RunE:  radioConnectAction,
	}
	connect.Flags().Uint8("channel", 1, "RFCOMM channel")

	cmd.AddCommand(listen, connect)
	return cmd
}

func radioListenAction(cmd *cobra.Command, _ []string) error {
	var opts []socket.Option
	if b, _ := cmd.Flags().GetBool("bluez"); b {
		adv, closeAdv, err := newAdvertiser()
		if err != nil {
			return fmt.Errorf("bluez: %w", err)
		}
		defer closeAdv()
		opts = append(opts, socket.WithAdvertiser(adv))
	}

	ln, err := socket.NewRadioSocket(opts...)
	if err != nil {
		return err
	}
	defer ln.Close()
	if err := ln.Listen(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "listening on channel %d\n", ln.Channel())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var peers []*socket.RadioSocket
	defer func() {
		for _, p := range peers {
			p.Close()
		}
	}()
	buf := make([]byte, 4096)
	return poll(ctx, func() error {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		if conn != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "accepted %s\n", conn.RemoteAddr())
			peers = append(peers, conn)
		}
		live := peers[:0]
		for _, p := range peers {
			n, err := p.Receive(buf)
			if err == nil && n > 0 {
				_, err = p.Send(buf[:n])
			}
			if errors.Is(err, socket.ErrWouldBlock) {
				err = nil
			}
			if err != nil || p.IsBroken() {
				p.Close()
				continue
			}
			live = append(live, p)
		}
		peers = live
		return nil
	})
}

func radioConnectAction(cmd *cobra.Command, args []string) error {
	ch, _ := cmd.Flags().GetUint8("channel")
	s, err := socket.NewRadioSocket(socket.WithRadioChannel(ch))
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Connect(args[0]); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	buf := make([]byte, 4096)
	var last time.Time
	seq := 0
	return poll(ctx, func() error {
		if time.Since(last) >= time.Second {
			last = time.Now()
			seq++
			if _, err := s.Send([]byte(fmt.Sprintf("ping %d", seq))); err != nil && !errors.Is(err, socket.ErrWouldBlock) {
				return err
			}
		}
		n, err := s.Receive(buf)
		if errors.Is(err, socket.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return err
		}
		if n > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", buf[:n])
		}
		return nil
	})
}

// poll 每 10ms 调用一次 step，直到 ctx 结束或 step 出错
func poll(ctx context.Context, step func() error) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := step(); err != nil {
				return err
			}
		}
	}
}
