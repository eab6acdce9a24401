// Package config loads mudra settings from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the decoded configuration shared by all mudra commands.
type Config struct {
	LogLevel  string         `mapstructure:"logLevel"`
	LogPretty bool           `mapstructure:"logPretty"`
	DataDir   string         `mapstructure:"dataDir"`
	Stream    StreamConfig   `mapstructure:"stream"`
	Backend   BackendConfig  `mapstructure:"backend"`
	Pipeline  PipelineConfig `mapstructure:"pipeline"`
	Relay     RelayConfig    `mapstructure:"relay"`
	Server    ServerConfig   `mapstructure:"server"`
	Overlay   OverlayConfig  `mapstructure:"overlay"`
}

// StreamConfig holds tracking stream settings.
type StreamConfig struct {
	URL            string        `mapstructure:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnectDelay"`
}

// BackendConfig holds gesture backend settings.
type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PipelineConfig holds window and cooldown settings.
type PipelineConfig struct {
	WindowSize    int           `mapstructure:"windowSize"`
	MinFrames     int           `mapstructure:"minFrames"`
	QuietPeriod   time.Duration `mapstructure:"quietPeriod"`
	ActiveContext string        `mapstructure:"activeContext"`
}

// RelayConfig holds hybrid-mode propagation settings.
type RelayConfig struct {
	OverlayURL string     `mapstructure:"overlayUrl"`
	MQTT       MQTTConfig `mapstructure:"mqtt"`
	// WatchStore re-reads the flag when another process writes the database.
	WatchStore bool          `mapstructure:"watchStore"`
	WatchPoll  time.Duration `mapstructure:"watchPoll"`
}

// MQTTConfig enables the cross-process relay transport when Broker is set.
type MQTTConfig struct {
	Broker string `mapstructure:"broker"`
	Topic  string `mapstructure:"topic"`
}

// ServerConfig holds reference backend settings.
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	PluginDir string `mapstructure:"pluginDir"`
	Simulate  bool   `mapstructure:"simulate"`
}

// OverlayConfig holds overlay consumer settings.
type OverlayConfig struct {
	Addr string `mapstructure:"addr"`
}

// DBPath returns the shared SQLite database location.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "mudra.db")
}

// DefaultDataDir returns ~/.mudra, or ./.mudra when no home is available.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".mudra"
	}
	return filepath.Join(home, ".mudra")
}

// New returns a viper instance populated with defaults.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("logLevel", "info")
	v.SetDefault("logPretty", true)
	v.SetDefault("dataDir", DefaultDataDir())

	v.SetDefault("stream.url", "ws://localhost:8080/ws/landmarks")
	v.SetDefault("stream.reconnectDelay", 3*time.Second)

	v.SetDefault("backend.url", "http://localhost:8080")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", 10*time.Second)

	v.SetDefault("pipeline.windowSize", 60)
	v.SetDefault("pipeline.minFrames", 30)
	v.SetDefault("pipeline.quietPeriod", time.Second)
	v.SetDefault("pipeline.activeContext", "global")

	v.SetDefault("relay.overlayUrl", "http://localhost:8765/config")
	v.SetDefault("relay.mqtt.broker", "")
	v.SetDefault("relay.mqtt.topic", "mudra/config")
	v.SetDefault("relay.watchStore", true)
	v.SetDefault("relay.watchPoll", 5*time.Second)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.pluginDir", filepath.Join(DefaultDataDir(), "plugins"))
	v.SetDefault("server.simulate", false)

	v.SetDefault("overlay.addr", "localhost:8765")

	v.SetEnvPrefix("MUDRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file into v. An explicit path must exist; without one
// mudra.{toml,json,yaml} is looked up in the data dir and the working
// directory, and a missing file is not an error.
func Load(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mudra")
		v.AddConfigPath(v.GetString("dataDir"))
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// Decode unmarshals the merged settings into a Config.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
