package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/plotto/pkg/backend"
	"github.com/go-go-golems/plotto/pkg/config"
	"github.com/go-go-golems/plotto/pkg/framesource"
	"github.com/go-go-golems/plotto/pkg/store"
	"github.com/go-go-golems/plotto/pkg/turn"
	"github.com/go-go-golems/plotto/pkg/webchart"
)

var (
	configPath string
	cfg        *config.Config
)

func main() {
	root := &cobra.Command{
		Use:   "plotto",
		Short: "Streaming chart chat server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			return setupLogging(cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(newServeCommand())
	root.AddCommand(newDemoCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", cfg.LogLevel)
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" && isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			generator := backend.DemoGenerator{
				Interval: cfg.FrameInterval,
				Logger:   log.Logger,
			}
			srv, err := webchart.NewServer(ctx, cfg, generator, log.Logger)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}

func newDemoCommand() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run one scripted turn offline and print the state events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), prompt)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "market summary", "prompt to answer")
	return cmd
}

// runDemo exercises the full pipeline in-process: the demo backend publishes
// frames onto a local bus, the turn controller reconciles them into the
// stores, and every state event is printed as a JSON line.
func runDemo(ctx context.Context, prompt string) error {
	const convID = "demo"

	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = bus.Close() }()

	printCtx, printCancel := context.WithCancel(ctx)
	defer printCancel()
	events, err := bus.Subscribe(printCtx, store.StateTopic(convID))
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to state topic")
	}
	printDone := make(chan struct{})
	go func() {
		defer close(printDone)
		for msg := range events {
			fmt.Println(string(msg.Payload))
			msg.Ack()
		}
	}()

	notifier := store.NewBusNotifier(convID, bus, log.Logger)
	charts := store.NewChartStore(convID, notifier, log.Logger)
	messages := store.NewMessageStore(convID, notifier, log.Logger)
	controller := turn.NewController(convID, charts, messages, notifier, log.Logger,
		turn.WithInactivityTimeout(cfg.InactivityTimeout))

	src := framesource.NewBusSource(convID, bus, log.Logger)
	if err := controller.Start(ctx, src); err != nil {
		return err
	}

	streamer := backend.NewStreamer(
		framesource.NewFramePublisher(convID, bus, log.Logger),
		cfg.FrameInterval, log.Logger)
	if err := streamer.Run(ctx, prompt); err != nil {
		return err
	}

	controller.Wait()
	printCancel()
	<-printDone

	if err := controller.LastError(); err != nil {
		return err
	}
	log.Info().Int("charts", charts.Len()).Int("messages", len(messages.Snapshot())).Msg("demo turn complete")
	return nil
}
