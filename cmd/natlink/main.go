// Package main 提供 natlink 命令行入口
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	natlink "github.com/dep2p/go-natlink"
	"github.com/dep2p/go-natlink/config"
	"github.com/dep2p/go-natlink/internal/util/logger"
)

var log = logger.Logger("cmd")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "natlink",
		Short:   "NAT traversal connectivity and UDP coordination",
		Version: strings.TrimPrefix(natlink.Version, "v"),
		Example: `  Run a coordination host:
  $ natlink host --listen-port 9000

  Register as a client:
  $ natlink client --host 203.0.113.7:9000 --set id=1 --set name=alice

  Connect two peers over ICE, signaling through the host:
  $ natlink ice --host 203.0.113.7:9000 --id 1 --peer 2`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "Log levels, e.g. \"coord=debug,info\"")
	flags.String("log-format", "", "Log format [text, json]")
	flags.String("config", "", "JSON config file")
	flags.String("metrics-addr", "", "Serve /metrics on this address")
	flags.Bool("verbose-fx", false, "Log fx assembly events")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return processGlobalFlags(cmd)
	}

	rootCmd.AddCommand(
		newHostCommand(),
		newClientCommand(),
		newQueryCommand(),
		newICECommand(),
		newIfacesCommand(),
		newRadioCommand(),
	)
	return rootCmd
}

func processGlobalFlags(cmd *cobra.Command) error {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	switch strings.ToLower(format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log-format: %q", format)
	}
	logger.Configure(level, format)
	return nil
}

// loadConfig 读取 --config，并应用 --metrics-addr 与配置中的日志设置
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	if !cmd.Flags().Changed("log-level") && !cmd.Flags().Changed("log-format") {
		logger.Configure(cfg.Log.Level, cfg.Log.Format)
	}
	return cfg, nil
}

// loopFunc 在应用运行期间执行的任务，返回 nil 表示正常结束
type loopFunc func(ctx context.Context, app *natlink.App) error

// runApp 启动应用并并发运行 loops
//
// 任一任务返回错误、全部任务结束或收到退出信号时停止应用。
func runApp(cmd *cobra.Command, cfg *config.Config, role natlink.Role, loops ...loopFunc) error {
	verbose, _ := cmd.Flags().GetBool("verbose-fx")
	app, err := natlink.New(
		natlink.WithConfig(cfg),
		natlink.WithRole(role),
		natlink.WithVerboseFx(verbose),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	log.Info("natlink 已启动", "version", natlink.Version, "role", role)

	g, gctx := errgroup.WithContext(ctx)
	for _, loop := range loops {
		loop := loop
		g.Go(func() error {
			return loop(gctx, app)
		})
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if stopErr := app.Stop(context.Background()); stopErr != nil {
		log.Warn("停止失败", "error", stopErr)
	}
	return err
}
