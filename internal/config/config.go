// Package config resolves petminder settings from defaults, config.yaml, a
// .env file and PETMINDER_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/petminder/internal/constants"
)

const (
	PresenterTerminal = "terminal"
	PresenterTelegram = "telegram"
	PresenterDesktop  = "desktop"
)

type Config struct {
	StorePath      string        `yaml:"store_path"`
	RemoteDSN      string        `yaml:"remote_dsn"`
	RemoteSchema   string        `yaml:"remote_schema"`
	SnoozeDuration time.Duration `yaml:"snooze_duration"`
	Timezone       string        `yaml:"timezone"`
	Presenter      string        `yaml:"presenter"`
	TelegramToken  string        `yaml:"telegram_token"`
	TelegramChatID int64         `yaml:"telegram_chat_id"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	Debug          bool          `yaml:"debug"`

	// Path is the config file that was read, empty if none existed.
	Path string `yaml:"-"`
}

// EnvLookup matches os.LookupEnv.
type EnvLookup func(key string) (string, bool)

type loadOptions struct {
	envLookup EnvLookup
	dotenv    []string
	homeDir   func() (string, error)
}

type Option func(*loadOptions)

// WithEnvLookup replaces the process environment, mainly for tests.
func WithEnvLookup(lookup EnvLookup) Option {
	return func(o *loadOptions) { o.envLookup = lookup }
}

// WithDotEnv sets the .env files to read. Missing files are skipped.
func WithDotEnv(paths ...string) Option {
	return func(o *loadOptions) { o.dotenv = paths }
}

func WithHomeDir(fn func() (string, error)) Option {
	return func(o *loadOptions) { o.homeDir = fn }
}

func Default() *Config {
	return &Config{
		StorePath:      constants.DefaultStorePath,
		RemoteSchema:   constants.DefaultRemoteSchema,
		SnoozeDuration: constants.DefaultSnoozeDuration,
		Presenter:      constants.DefaultPresenter,
		MetricsAddr:    constants.DefaultMetricsAddr,
	}
}

// Load reads path (or ~/.config/petminder/config.yaml when empty) and applies
// the .env and environment layers on top. A missing file is not an error.
func Load(path string, opts ...Option) (*Config, error) {
	options := loadOptions{
		envLookup: os.LookupEnv,
		dotenv:    []string{".env"},
		homeDir:   os.UserHomeDir,
	}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = filepath.Join(constants.DefaultConfigDir, constants.DefaultConfigFile)
	}
	path, err := expandHome(path, options.homeDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}

	dotenv := make(map[string]string)
	for _, p := range options.dotenv {
		vals, err := godotenv.Read(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		for k, v := range vals {
			if _, ok := dotenv[k]; !ok {
				dotenv[k] = v
			}
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := options.envLookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if cfg.StorePath, err = expandHome(cfg.StorePath, options.homeDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	c.Path = path
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup EnvLookup) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(constants.EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("STORE_PATH", &c.StorePath)
	str("REMOTE_DSN", &c.RemoteDSN)
	str("REMOTE_SCHEMA", &c.RemoteSchema)
	str("TIMEZONE", &c.Timezone)
	str("PRESENTER", &c.Presenter)
	str("TELEGRAM_TOKEN", &c.TelegramToken)
	str("METRICS_ADDR", &c.MetricsAddr)

	if v, ok := lookup(constants.EnvPrefix + "SNOOZE_DURATION"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSNOOZE_DURATION: %w", constants.EnvPrefix, err)
		}
		c.SnoozeDuration = d
	}
	if v, ok := lookup(constants.EnvPrefix + "TELEGRAM_CHAT_ID"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sTELEGRAM_CHAT_ID: %w", constants.EnvPrefix, err)
		}
		c.TelegramChatID = id
	}
	if v, ok := lookup(constants.EnvPrefix + "DEBUG"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDEBUG: %w", constants.EnvPrefix, err)
		}
		c.Debug = b
	}
	return nil
}

// Validate checks values that cannot be caught while parsing.
func (c *Config) Validate() error {
	if c.SnoozeDuration <= 0 {
		return fmt.Errorf("snooze_duration must be positive, got %s", c.SnoozeDuration)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Presenter {
	case PresenterTerminal, PresenterDesktop:
	case PresenterTelegram:
		if c.TelegramToken == "" || c.TelegramChatID == 0 {
			return errors.New("telegram presenter needs telegram_token and telegram_chat_id")
		}
	default:
		return fmt.Errorf("unknown presenter %q (want %s, %s or %s)", c.Presenter, PresenterTerminal, PresenterTelegram, PresenterDesktop)
	}
	return nil
}

// Location resolves Timezone, defaulting to the system zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ConfigDir is the directory holding the store, logs and backups.
func (c *Config) ConfigDir() string {
	return filepath.Dir(c.StorePath)
}

// Save writes the config as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func expandHome(path string, homeDir func() (string, error)) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := homeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
