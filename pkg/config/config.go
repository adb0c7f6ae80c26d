// Package config provides YAML-based configuration loading for the bridge.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // Device is the DIAG device specifier: "auto", a serial device path,
    // "vvvv:pppp[:cfg:intf]" in hex or "bbb:aaa[:cfg:intf]" in decimal.
    Device string `mapstructure:"device"`

    // Baud applies when the endpoint is a serial character device.
    Baud int `mapstructure:"baud"`

    // Bridge, when set, reads from a forwarded debug-bridge socket
    // (host:port) instead of a local device.
    Bridge string `mapstructure:"bridge"`

    // Replay, when set, reads a captured DIAG stream from a file instead of
    // a live device.
    Replay string `mapstructure:"replay"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Record configures the packet recorder module.
    Record RecordConfig `mapstructure:"record"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// RecordConfig configures the packet recorder.
type RecordConfig struct {
    // Path of the record file; empty or "-" writes to stdout. Existing
    // files are appended to.
    Path string `mapstructure:"path"`
    // Format: json or cbor
    Format string `mapstructure:"format"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        Device: "auto",
        Baud:   115200,
        Log: LogConfig{
            Level:  "info",
            Format: "console",
            // stderr by default: stdout may carry recorded packets
            Outputs:     []string{"stderr"},
            Development: false,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/qcsuper.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Record: RecordConfig{Format: "json"},
    }
}

// Load reads configuration from the provided path (if non-empty), otherwise
// it searches common locations and supports environment overrides. The env
// prefix is QCSUPER and `.`/`-` map to `_`, e.g. QCSUPER_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("QCSUPER")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("device", cfg.Device)
    v.SetDefault("baud", cfg.Baud)
    v.SetDefault("bridge", cfg.Bridge)
    v.SetDefault("replay", cfg.Replay)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    v.SetDefault("record.path", cfg.Record.Path)
    v.SetDefault("record.format", cfg.Record.Format)

    if path == "" {
        if envPath := os.Getenv("QCSUPER_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `qcsuper`
        v.SetConfigName("qcsuper")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".qcsuper"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var notFound viper.ConfigFileNotFoundError
        if !errors.As(err, &notFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stderr"}
    }

    switch strings.ToLower(strings.TrimSpace(c.Record.Format)) {
    case "", "json":
        c.Record.Format = "json"
    case "cbor":
        c.Record.Format = "cbor"
    default:
        return fmt.Errorf("invalid record.format: %q (want json or cbor)", c.Record.Format)
    }

    if c.Bridge != "" && c.Replay != "" {
        return errors.New("bridge and replay inputs are mutually exclusive")
    }
    if strings.TrimSpace(c.Device) == "" {
        c.Device = "auto"
    }
    return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
