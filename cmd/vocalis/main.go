// Vocalis is a voice-driven conversational agent: it listens on the
// microphone, answers through a dialogue model and speaks the reply.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vocalisproject/vocalis/internal/agent"
	"github.com/vocalisproject/vocalis/internal/bus"
	"github.com/vocalisproject/vocalis/internal/config"
	"github.com/vocalisproject/vocalis/internal/logging"
)

var (
	flagLogLevel string
	flagConsole  bool
)

func main() {
	root := &cobra.Command{
		Use:   "vocalis",
		Short: "Voice-driven conversational agent",
		Long:  "Vocalis listens on the default microphone, segments speech, answers through a dialogue model and speaks replies. Say goodbye or stay silent to start a fresh conversation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flagConsole, "console", true, "log to the console as well as the log file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(flagLogLevel)
	logCfg.Console = flagConsole
	log, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Close()

	logger := log.Zerolog()

	a, err := agent.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	observeEvents(a.Bus())

	config.Watch(func(updated *config.Config) {
		logger.Info().Msg("Configuration file changed, restart to apply")
	})

	return a.Run(ctx)
}

// observeEvents mirrors pipeline events onto the console so the user can
// follow the conversation without reading the log file.
func observeEvents(b *bus.EventBus) {
	b.Subscribe(bus.EventTypeTranscript, func(e bus.Event) {
		if text, ok := e.Data["text"].(string); ok {
			fmt.Printf("you: %s\n", text)
		}
	})
	b.Subscribe(bus.EventTypeInterrupted, func(e bus.Event) {
		fmt.Println("-- interrupted --")
	})
	b.Subscribe(bus.EventTypeSessionRotated, func(e bus.Event) {
		fmt.Println("-- new conversation --")
	})
	b.Subscribe(bus.EventTypeTurnFailed, func(e bus.Event) {
		fmt.Println("(something went wrong, try again)")
	})
}
