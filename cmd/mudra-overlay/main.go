// Package main runs the screen overlay: a tray menu showing hybrid mode and
// the local endpoint client contexts push updates to.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/overlay"
	"github.com/ayusman/mudra/internal/relay"
	"github.com/ayusman/mudra/internal/store"
)

var (
	v       = config.New()
	cfgFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mudra-overlay",
		Short:        "Show and toggle hybrid mode from the system tray",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file")
	cmd.Flags().String("addr", "localhost:8765", "overlay endpoint listen address")
	cmd.Flags().String("mqtt", "", "MQTT broker for cross-process hybrid-mode updates")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("overlay.addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("relay.mqtt.broker", cmd.Flags().Lookup("mqtt"))
	_ = v.BindPFlag("logLevel", cmd.Flags().Lookup("log-level"))
	return cmd
}

func run(_ *cobra.Command, _ []string) error {
	if err := config.Load(v, cfgFile); err != nil {
		return err
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	r, err := relay.New(relay.Config{Settings: st.Settings(), Logger: logger})
	if err != nil {
		return err
	}

	o := overlay.New(r.HybridMode(), nil, logger)
	defer r.Subscribe(func(c relay.Change) {
		if c.Key == store.KeyHybridMode {
			o.Set(c.New)
		}
	})()

	if cfg.Relay.MQTT.Broker != "" {
		t, err := relay.DialMQTT(relay.MQTTConfig{
			Broker:   cfg.Relay.MQTT.Broker,
			Topic:    cfg.Relay.MQTT.Topic,
			ClientID: "mudra-overlay-" + r.ID(),
			Logger:   logger,
		}, r)
		if err != nil {
			return fmt.Errorf("connect relay broker: %w", err)
		}
		defer t.Close()
		r.AddTransport(t)
	}

	if cfg.Relay.WatchStore {
		w, err := relay.WatchStore(relay.WatchConfig{
			Path:   cfg.DBPath(),
			Target: r,
			Poll:   cfg.Relay.WatchPoll,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		defer w.Close()
	}

	srv := &http.Server{
		Addr:              cfg.Overlay.Addr,
		Handler:           o.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("overlay endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("overlay endpoint failed")
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	tray := overlay.NewTray(o)
	tray.OnToggle(func(enabled bool) {
		if _, err := r.SetHybridMode(context.Background(), enabled); err != nil {
			logger.Error().Err(err).Msg("failed to toggle hybrid mode")
		}
	})
	tray.OnQuit(func() {
		logger.Info().Msg("overlay quitting")
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		if _, ok := <-sig; ok {
			tray.Quit()
		}
	}()

	tray.Run()
	return nil
}
