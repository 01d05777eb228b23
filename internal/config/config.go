// Package config provides Viper-based configuration loading for the bridge server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings shared by the control plane
// routes and the WebSocket endpoint.
type ServerConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// ReadTimeout bounds reading a full control plane request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout bounds writing a control plane response. Teleports and
	// roulette spins run for several seconds, so keep it generous.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WebSocketConfig holds settings for the game client duplex link.
type WebSocketConfig struct {
	// Path is the HTTP path the game client connects to.
	Path string `mapstructure:"path"`
	// ReadBufferSize and WriteBufferSize size the upgrader buffers.
	ReadBufferSize  int `mapstructure:"read_buffer_size"`
	WriteBufferSize int `mapstructure:"write_buffer_size"`
	// WriteTimeout is the per-message write deadline.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// EventQueue is the number of pushed events buffered per link before new
	// pushes are dropped.
	EventQueue int `mapstructure:"event_queue"`
}

// BridgeConfig holds command correlation settings.
type BridgeConfig struct {
	// CommandTimeout bounds how long a caller waits for a correlated reply.
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// SearchConfig holds the safe-location search bounds.
type SearchConfig struct {
	MinY        int      `mapstructure:"min_y"`
	MaxY        int      `mapstructure:"max_y"`
	SeaLevel    int      `mapstructure:"sea_level"`
	MaxAttempts int      `mapstructure:"max_attempts"`
	Jitter      int      `mapstructure:"jitter"`
	Hazards     []string `mapstructure:"hazards"`
}

// TimerConfig holds session timer settings.
type TimerConfig struct {
	// Tick is the countdown granularity. One second in production.
	Tick time.Duration `mapstructure:"tick"`
}

// ActionsConfig holds pacing for multi-step actions.
type ActionsConfig struct {
	// SettleDelay is the wait between the high-altitude hop and the safe search.
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	// SpinFrame is the base delay between fast roulette frames.
	SpinFrame time.Duration `mapstructure:"spin_frame"`
	// TeleportRange is the maximum horizontal offset of a random teleport.
	TeleportRange int `mapstructure:"teleport_range"`
}

// ContentConfig points at the static vocabulary file.
type ContentConfig struct {
	// Path is a YAML vocabulary file. Empty selects the built-in vocabulary.
	Path string `mapstructure:"path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Search    SearchConfig    `mapstructure:"search"`
	Timer     TimerConfig     `mapstructure:"timer"`
	Actions   ActionsConfig   `mapstructure:"actions"`
	Content   ContentConfig   `mapstructure:"content"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWebSocket(c.WebSocket); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Bridge.CommandTimeout <= 0 {
		errs = append(errs, "bridge.command_timeout must be > 0")
	}
	if err := validateSearch(c.Search); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Timer.Tick <= 0 {
		errs = append(errs, "timer.tick must be > 0")
	}
	if err := validateActions(c.Actions); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "server.shutdown_timeout must be > 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWebSocket(w WebSocketConfig) error {
	var errs []string
	if !strings.HasPrefix(w.Path, "/") {
		errs = append(errs, fmt.Sprintf("websocket.path must start with '/', got %q", w.Path))
	}
	if w.ReadBufferSize < 0 || w.WriteBufferSize < 0 {
		errs = append(errs, "websocket buffer sizes must not be negative")
	}
	if w.WriteTimeout <= 0 {
		errs = append(errs, "websocket.write_timeout must be > 0")
	}
	if w.EventQueue < 1 {
		errs = append(errs, fmt.Sprintf("websocket.event_queue must be >= 1, got %d", w.EventQueue))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSearch(s SearchConfig) error {
	var errs []string
	if s.MinY >= s.MaxY {
		errs = append(errs, fmt.Sprintf("search.min_y (%d) must be below search.max_y (%d)", s.MinY, s.MaxY))
	}
	if s.SeaLevel < s.MinY || s.SeaLevel > s.MaxY {
		errs = append(errs, fmt.Sprintf("search.sea_level must be within [%d, %d], got %d", s.MinY, s.MaxY, s.SeaLevel))
	}
	if s.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("search.max_attempts must be >= 1, got %d", s.MaxAttempts))
	}
	if s.Jitter < 1 {
		errs = append(errs, fmt.Sprintf("search.jitter must be >= 1, got %d", s.Jitter))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateActions(a ActionsConfig) error {
	var errs []string
	if a.SettleDelay < 0 {
		errs = append(errs, "actions.settle_delay must not be negative")
	}
	if a.SpinFrame < 0 {
		errs = append(errs, "actions.spin_frame must not be negative")
	}
	if a.TeleportRange < 0 {
		errs = append(errs, "actions.teleport_range must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// Defaults returns the configuration produced by defaults and environment
// overrides alone, without a config file.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Defaults() (Config, error) {
	return LoadFromViper(newViper())
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	// Environment variable overrides with BRIDGE_ prefix
	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_buffer_size", 64*1024)
	v.SetDefault("websocket.write_buffer_size", 64*1024)
	v.SetDefault("websocket.write_timeout", "5s")
	v.SetDefault("websocket.event_queue", 256)

	v.SetDefault("bridge.command_timeout", "5s")

	v.SetDefault("search.min_y", -59)
	v.SetDefault("search.max_y", 320)
	v.SetDefault("search.sea_level", 64)
	v.SetDefault("search.max_attempts", 100)
	v.SetDefault("search.jitter", 5)
	v.SetDefault("search.hazards", []string{"lava", "flowing_lava", "fire"})

	v.SetDefault("timer.tick", "1s")

	v.SetDefault("actions.settle_delay", "3s")
	v.SetDefault("actions.spin_frame", "100ms")
	v.SetDefault("actions.teleport_range", 3000)

	v.SetDefault("content.path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
