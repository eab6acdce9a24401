// Package main provides the mudra command line: the gesture client, the
// hybrid-mode switch, the editor session and the reference backend.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/backend"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/pipeline"
	"github.com/ayusman/mudra/internal/relay"
	"github.com/ayusman/mudra/internal/store"
)

var (
	v       = config.New()
	cfgFile string

	cfg    config.Config
	logger zerolog.Logger
)

// persistent flag name -> config key
var flagKeys = map[string]string{
	"log-level":  "logLevel",
	"log-pretty": "logPretty",
	"data-dir":   "dataDir",
	"stream":     "stream.url",
	"backend":    "backend.url",
	"token":      "backend.token",
	"mqtt":       "relay.mqtt.broker",
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "mudra",
		Short:             "Hand gesture control client",
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: mudra.{toml,yaml,json} in the data dir)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-pretty", true, "human readable log output")
	flags.String("data-dir", config.DefaultDataDir(), "directory holding the settings database")
	flags.String("stream", "ws://localhost:8080/ws/landmarks", "tracking service WebSocket URL")
	flags.String("backend", "http://localhost:8080", "gesture backend base URL")
	flags.String("token", "", "bearer token for recording-state writes")
	flags.String("mqtt", "", "MQTT broker for cross-process hybrid-mode updates")
	for name, key := range flagKeys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newHybridCmd())
	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRenderCmd())

	return rootCmd
}

func loadConfig(_ *cobra.Command, _ []string) error {
	if err := config.Load(v, cfgFile); err != nil {
		return err
	}
	var err error
	cfg, err = config.Decode(v)
	if err != nil {
		return err
	}
	logger = logging.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	return nil
}

func openStore() (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// newApp builds a client context from the merged config. streamURL is left
// empty by commands that never open the tracking stream.
func newApp(st *store.Store, streamURL string, status pipeline.StatusSink) (*app.App, error) {
	return app.New(app.Config{
		Store:          st,
		Backend:        backend.New(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Timeout),
		StreamURL:      streamURL,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		WindowSize:     cfg.Pipeline.WindowSize,
		MinFrames:      cfg.Pipeline.MinFrames,
		QuietPeriod:    cfg.Pipeline.QuietPeriod,
		ActiveContext:  cfg.Pipeline.ActiveContext,
		OverlayURL:     cfg.Relay.OverlayURL,
		MQTT: relay.MQTTConfig{
			Broker: cfg.Relay.MQTT.Broker,
			Topic:  cfg.Relay.MQTT.Topic,
		},
		// one-shot commands exit before another process could write
		WatchStore: streamURL != "" && cfg.Relay.WatchStore,
		WatchPoll:  cfg.Relay.WatchPoll,
		Logger:     logger,
		Status:     status,
	})
}

// printStatus writes one status line per pipeline update.
func printStatus(w io.Writer) pipeline.StatusSink {
	return pipeline.StatusFunc(func(s pipeline.Status) {
		at := s.At
		if at.IsZero() {
			at = time.Now()
		}
		fmt.Fprintf(w, "%s  %-15s %s\n", at.Format("15:04:05"), s.Kind, s.Message)
	})
}
