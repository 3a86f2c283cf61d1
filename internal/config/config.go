package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iqtlabs/gamutrf/internal/sdr"
	"github.com/iqtlabs/gamutrf/internal/sigwindows"
)

// EnvPrefix is prepended to every environment override, e.g. GAMUTRF_SDR.
const EnvPrefix = "GAMUTRF"

const historyFileName = "gamutrf_jobs.sqlite"

// LogLevels are the accepted values of the loglevel key.
var LogLevels = []string{"critical", "error", "warning", "info", "debug"}

// Config is the immutable process configuration built once at startup.
type Config struct {
	SDR            string        `mapstructure:"sdr" yaml:"sdr"`
	Gain           int           `mapstructure:"gain" yaml:"gain"`
	AGC            bool          `mapstructure:"agc" yaml:"agc"`
	RXB            int           `mapstructure:"rxb" yaml:"rxb"`
	Path           string        `mapstructure:"path" yaml:"path"`
	SigMF          bool          `mapstructure:"sigmf" yaml:"sigmf"`
	Port           int           `mapstructure:"port" yaml:"port"`
	FreqExcluded   []string      `mapstructure:"freq_excluded" yaml:"freq_excluded"`
	LogLevel       string        `mapstructure:"loglevel" yaml:"loglevel"`
	CaptureTimeout time.Duration `mapstructure:"capture_timeout" yaml:"capture_timeout"`
	History        bool          `mapstructure:"history" yaml:"history"`
	HistoryDB      string        `mapstructure:"history_db" yaml:"history_db"`
	CORSOrigins    []string      `mapstructure:"cors_origins" yaml:"cors_origins"`

	// Resolved by Validate
	device   *sdr.Device
	excluded []sigwindows.Range
}

var defaultConfig = Config{
	SDR:          string(sdr.KindEttus),
	Gain:         0,
	AGC:          true,
	RXB:          20000000,
	Path:         "/data/gamutrf",
	SigMF:        true,
	Port:         8000,
	FreqExcluded: []string{},
	LogLevel:     "info",
	History:      true,
	CORSOrigins:  []string{"*"},
}

// Default returns a validated copy of the built-in defaults.
func Default() *Config {
	cfg := defaultConfig
	cfg.FreqExcluded = append([]string{}, defaultConfig.FreqExcluded...)
	cfg.CORSOrigins = append([]string{}, defaultConfig.CORSOrigins...)
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return &cfg
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sdr", defaultConfig.SDR)
	v.SetDefault("gain", defaultConfig.Gain)
	v.SetDefault("agc", defaultConfig.AGC)
	v.SetDefault("rxb", defaultConfig.RXB)
	v.SetDefault("path", defaultConfig.Path)
	v.SetDefault("sigmf", defaultConfig.SigMF)
	v.SetDefault("port", defaultConfig.Port)
	v.SetDefault("freq_excluded", defaultConfig.FreqExcluded)
	v.SetDefault("loglevel", defaultConfig.LogLevel)
	v.SetDefault("capture_timeout", defaultConfig.CaptureTimeout)
	v.SetDefault("history", defaultConfig.History)
	v.SetDefault("history_db", defaultConfig.HistoryDB)
	v.SetDefault("cors_origins", defaultConfig.CORSOrigins)
}

// Load resolves configuration from defaults, the optional config file,
// GAMUTRF_* environment variables and any flags already bound to v.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate normalizes cfg and resolves the device and exclusion ranges.
// Any error here is fatal at startup.
func (c *Config) Validate() error {
	device, err := sdr.New(c.SDR)
	if err != nil {
		return fmt.Errorf("sdr: %w", err)
	}
	c.SDR = string(device.Kind())

	if c.RXB <= 0 {
		return fmt.Errorf("rxb must be > 0, got: %d", c.RXB)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got: %d", c.Port)
	}

	if c.CaptureTimeout < 0 {
		return fmt.Errorf("capture_timeout must be >= 0, got: %s", c.CaptureTimeout)
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("loglevel must be one of %s, got: %s", strings.Join(LogLevels, ", "), c.LogLevel)
	}

	c.Path = expandPath(strings.TrimSpace(c.Path))
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}

	excluded, err := sigwindows.ParseFreqExcluded(c.FreqExcluded)
	if err != nil {
		return err
	}

	if c.History && c.HistoryDB == "" {
		c.HistoryDB = filepath.Join(c.Path, historyFileName)
	}
	c.HistoryDB = expandPath(c.HistoryDB)

	c.device = device
	c.excluded = excluded
	return nil
}

// Device returns the capture device resolved by Validate.
func (c *Config) Device() *sdr.Device {
	return c.device
}

// Excluded returns the parsed exclusion ranges.
func (c *Config) Excluded() []sigwindows.Range {
	return c.excluded
}

// Tuning returns the receive settings shared by every capture.
func (c *Config) Tuning() sdr.Tuning {
	return sdr.Tuning{
		Gain:           c.Gain,
		AGC:            c.AGC,
		RecvBufferSize: c.RXB,
	}
}

// Addr returns the listen address for the API server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func isValidLogLevel(level string) bool {
	for _, l := range LogLevels {
		if l == level {
			return true
		}
	}
	return false
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
