package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/danmuck/ircterm/internal/config"
	"github.com/danmuck/ircterm/internal/engine"
	"github.com/danmuck/ircterm/internal/logging"
	"github.com/danmuck/ircterm/internal/observability"
	"github.com/danmuck/ircterm/internal/supervisor"
	"github.com/danmuck/ircterm/internal/tui"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ircterm: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "ircterm",
		Short:         "Terminal IRC client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ircterm.toml")

	run := runCmd(&configPath)
	root.RunE = run.RunE
	root.Flags().AddFlagSet(run.Flags())
	root.AddCommand(run, configCmd(&configPath), versionCmd())
	return root
}

func runCmd(configPath *string) *cobra.Command {
	var f runFlags
	var headless bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect and open the chat window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadClientConfig(*configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			rt, err = applyFlags(rt, f, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			if err := config.Check(rt); err != nil {
				return err
			}
			return runClient(rt, headless)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.server, "server", "s", "", "server host[:port] or irc://, ircs://, ws://, wss:// URL")
	flags.IntVarP(&f.port, "port", "p", 0, "server port")
	flags.BoolVar(&f.tls, "tls", false, "use TLS for a bare host")
	flags.StringVar(&f.proxy, "proxy", "", "socks5:// proxy URL")
	flags.StringVarP(&f.nick, "nick", "n", "", "nickname")
	flags.StringVar(&f.username, "username", "", "username (defaults to nick)")
	flags.StringVar(&f.realname, "realname", "", "real name (defaults to nick)")
	flags.StringSliceVarP(&f.join, "join", "j", nil, "channels to join after registration")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /state on this address")
	flags.StringVar(&f.logFile, "log-file", "", "write logs to this file")
	flags.IntVar(&f.maxAttempts, "max-attempts", 0, "reconnect attempts before giving up (0 retries forever)")
	flags.BoolVar(&headless, "headless", false, "log events instead of opening the chat window")
	return cmd
}

func runClient(rt config.Runtime, headless bool) error {
	logCfg := logging.DefaultConfig(logging.ProfileRuntime)
	logCfg.File = rt.LogFile
	if logCfg.File == "" && !headless {
		// the chat window owns the terminal
		logCfg.File = "ircterm.log"
	}
	logging.ApplyEnvOverrides(&logCfg)
	if err := logging.Apply(logCfg); err != nil {
		log.Warn().Err(err).Str("file", logCfg.File).Msg("ircterm.log file unavailable")
	}
	logger := observability.InitLogger("ircterm")
	observability.RegisterMetrics()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := supervisor.New(rt.Client, supervisor.WithLogger(logger))
	logger.Info().
		Str("server", rt.Client.Endpoint.String()).
		Str("nick", rt.Client.Engine.Nickname).
		Msg("ircterm.start")

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	grace := rt.Client.WithDefaults().Session.QuitGrace + time.Second
	go watchSignals(runCtx, sigs, sup, grace, cancel, logger)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		return sup.Run(gctx)
	})
	if rt.MetricsAddr != "" {
		dbg := observability.NewDebugServer(rt.MetricsAddr, rt.CorsOrigins, logger,
			func() any { return sup.Snapshot() },
			sup.Registered,
		)
		g.Go(func() error { return dbg.Run(gctx) })
	}
	g.Go(func() error {
		defer sup.Close()
		if headless {
			logEvents(logger, sup.Events())
			return nil
		}
		return tui.Run(gctx, sup, sup.Events())
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchSignals turns the first signal into a client quit so QUIT reaches the
// server. The run context is canceled once grace has passed or on a second
// signal.
func watchSignals(ctx context.Context, sigs <-chan os.Signal, sup interface{ Close() }, grace time.Duration, cancel context.CancelFunc, logger zerolog.Logger) {
	select {
	case <-ctx.Done():
		return
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Dur("grace", grace).Msg("ircterm.shutdown")
		sup.Close()
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-sigs:
		logger.Warn().Msg("ircterm.shutdown forced")
		cancel()
	case <-timer.C:
		logger.Warn().Msg("ircterm.shutdown grace elapsed")
		cancel()
	}
}

// logEvents drains events until the supervisor closes the channel.
func logEvents(logger zerolog.Logger, events <-chan engine.Event) {
	for ev := range events {
		e := logger.Info().Str("event", ev.EventName())
		switch v := ev.(type) {
		case engine.MessageReceived:
			e = e.Str("from", v.From).Str("target", v.Target).Str("text", v.Text)
		case engine.Registered:
			e = e.Str("nick", v.Nick).Str("server", v.Server)
		case engine.ChannelJoined:
			e = e.Str("channel", v.Name)
		case engine.ChannelLeft:
			e = e.Str("channel", v.Name).Str("reason", v.Reason)
		case engine.Disconnected:
			e = e.Str("reason", v.Reason).Bool("final", v.Final)
		case engine.Reconnecting:
			e = e.Int("attempt", v.Attempt).Dur("delay", v.Delay)
		case engine.Warning:
			e = logger.Warn().Str("event", ev.EventName()).Str("detail", v.Detail)
		case engine.FatalError:
			e = logger.Error().Str("event", ev.EventName()).Err(v.Err).Str("kind", v.Kind.String())
		case engine.RawUnhandled:
			e = logger.Debug().Str("event", ev.EventName()).Str("line", v.Message.String())
		}
		e.Msg("ircterm.event")
	}
}

func configCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check ircterm.toml",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteTemplate(*configPath, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote config template to %s\n", *configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadClientConfig(*configPath, true)
			if err != nil {
				return err
			}
			if err := config.Check(rt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validated config at %s (server %s, nick %s)\n",
				*configPath, rt.Client.Endpoint.String(), rt.Client.Engine.Nickname)
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ircterm %s (%s) %s %s/%s\n",
				version, commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
