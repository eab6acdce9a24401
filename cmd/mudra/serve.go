package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/tracking"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference gesture backend",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("plugins", filepath.Join(config.DefaultDataDir(), "plugins"), "plugin directory")
	cmd.Flags().Bool("simulate", false, "stream synthetic landmarks on /ws/landmarks")
	_ = v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("server.pluginDir", cmd.Flags().Lookup("plugins"))
	_ = v.BindPFlag("server.simulate", cmd.Flags().Lookup("simulate"))
	return cmd
}

func runServe(_ *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	plugins := plugin.NewManager(cfg.Server.PluginDir, logger)
	if err := plugins.Discover(); err != nil {
		logger.Warn().Err(err).Str("dir", cfg.Server.PluginDir).Msg("plugin discovery failed")
	}

	srvCfg := server.Config{
		StaticDir: findWebDir(),
		Store:     st,
		Plugins:   plugins,
		Executor:  plugin.NewExecutor(plugin.DefaultTimeout),
		Token:     cfg.Backend.Token,
		Logger:    logger,
	}
	if cfg.Server.Simulate {
		srvCfg.Source = tracking.NewSimulator()
		srvCfg.FPS = tracking.DefaultFPS
	}
	if srvCfg.StaticDir != "" {
		logger.Info().Str("dir", srvCfg.StaticDir).Msg("serving static files")
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

// findWebDir returns the first existing web directory among ./web, ../web
// and <data dir>/web, or "" when there is none.
func findWebDir() string {
	candidates := []string{"web", filepath.Join("..", "web"), filepath.Join(cfg.DataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
