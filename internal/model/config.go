package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Security selects how the IMAP connection is protected.
const (
	SecurityTLS      = "tls"
	SecurityStartTLS = "starttls"
	SecurityNone     = "none"
)

// LabelMode selects how a label is written to the mailbox.
type LabelMode string

const (
	// LabelModeAuto picks gmail for Google hosts and keyword otherwise.
	LabelModeAuto LabelMode = "auto"
	// LabelModeGmail copies messages into the label's mailbox.
	LabelModeGmail LabelMode = "gmail"
	// LabelModeKeyword adds an IMAP keyword flag.
	LabelModeKeyword LabelMode = "keyword"
)

// Resolve turns auto into a concrete mode for the given IMAP host.
func (m LabelMode) Resolve(host string) LabelMode {
	if m != LabelModeAuto && m != "" {
		return m
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if strings.HasSuffix(host, "gmail.com") || strings.HasSuffix(host, "googlemail.com") {
		return LabelModeGmail
	}
	return LabelModeKeyword
}

// AccountConfig holds the connection settings for the single mailbox.
// The password is never part of the config file.
type AccountConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`

	// Security is one of tls, starttls or none.
	Security string `mapstructure:"security" yaml:"security"`
}

// ScanConfig controls the sender-frequency scan.
type ScanConfig struct {
	Folder string `mapstructure:"folder" yaml:"folder"`

	// Count is how many of the most recent messages are scanned.
	Count int `mapstructure:"count" yaml:"count"`

	// TopN is how many distinct senders are listed.
	TopN int `mapstructure:"top_n" yaml:"top_n"`
}

// LabelConfig controls the label applied to chosen senders' messages.
type LabelConfig struct {
	Name string    `mapstructure:"name" yaml:"name"`
	Mode LabelMode `mapstructure:"mode" yaml:"mode"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Account AccountConfig `mapstructure:"account" yaml:"account"`
	Scan    ScanConfig    `mapstructure:"scan" yaml:"scan"`
	Label   LabelConfig   `mapstructure:"label" yaml:"label"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// Limits for ScanConfig.Count. The interactive form narrows these to
// FormMinCount..FormMaxCount.
const (
	MaxScanCount = 100000
	FormMinCount = 100
	FormMaxCount = 5000
)

// EnvPrefix prefixes environment overrides, e.g. INBOXZERO_SCAN_COUNT.
const EnvPrefix = "INBOXZERO"

// ConfigDir returns ~/.config/inboxzero, or the working directory when
// the home directory is unknown.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "inboxzero")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/inboxzero/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Account: AccountConfig{
			Host:     "imap.gmail.com",
			Port:     993,
			Security: SecurityTLS,
		},
		Scan: ScanConfig{
			Folder: "INBOX",
			Count:  500,
			TopN:   3,
		},
		Label: LabelConfig{
			Name: "ToDelete",
			Mode: LabelModeAuto,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(ConfigDir(), "inboxzero.log"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("account.host", d.Account.Host)
	v.SetDefault("account.port", d.Account.Port)
	v.SetDefault("account.username", d.Account.Username)
	v.SetDefault("account.security", d.Account.Security)
	v.SetDefault("scan.folder", d.Scan.Folder)
	v.SetDefault("scan.count", d.Scan.Count)
	v.SetDefault("scan.top_n", d.Scan.TopN)
	v.SetDefault("label.name", d.Label.Name)
	v.SetDefault("label.mode", string(d.Label.Mode))
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults are used. Environment variables
// prefixed with INBOXZERO_ override both.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Account.Security = strings.ToLower(strings.TrimSpace(cfg.Account.Security))
	cfg.Label.Mode = LabelMode(strings.ToLower(strings.TrimSpace(string(cfg.Label.Mode))))

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("account", cfg.Account)
	v.Set("scan", cfg.Scan)
	v.Set("label", map[string]string{
		"name": cfg.Label.Name,
		"mode": string(cfg.Label.Mode),
	})
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Validate checks the settings that would otherwise fail deep inside a
// scan or label run.
func (c *AppConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Account.Host) == "" {
		errs = append(errs, errors.New("account.host is required"))
	}
	if c.Account.Port < 1 || c.Account.Port > 65535 {
		errs = append(errs, fmt.Errorf("account.port %d is out of range", c.Account.Port))
	}
	switch c.Account.Security {
	case SecurityTLS, SecurityStartTLS, SecurityNone:
	default:
		errs = append(errs, fmt.Errorf("account.security %q must be tls, starttls or none", c.Account.Security))
	}

	if strings.TrimSpace(c.Scan.Folder) == "" {
		errs = append(errs, errors.New("scan.folder is required"))
	}
	if c.Scan.Count < 1 || c.Scan.Count > MaxScanCount {
		errs = append(errs, fmt.Errorf("scan.count must be between 1 and %d", MaxScanCount))
	}
	if c.Scan.TopN < 1 {
		errs = append(errs, errors.New("scan.top_n must be at least 1"))
	}

	switch c.Label.Mode {
	case LabelModeAuto, LabelModeGmail, LabelModeKeyword:
	default:
		errs = append(errs, fmt.Errorf("label.mode %q must be auto, gmail or keyword", c.Label.Mode))
	}
	if err := ValidateLabel(c.Label.Name, c.Label.Mode.Resolve(c.Account.Host)); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateLabel checks that name can be written in the given mode. IMAP
// keywords are atoms, so they cannot contain spaces or specials; Gmail
// labels only need to be non-empty.
func ValidateLabel(name string, mode LabelMode) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("label name is required")
	}
	if mode != LabelModeKeyword {
		return nil
	}
	if strings.HasPrefix(name, `\`) {
		return fmt.Errorf("label %q: system flags cannot be used as labels", name)
	}
	for _, r := range name {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune(`(){%*"\]`, r) {
			return fmt.Errorf("label %q: keyword labels cannot contain %q", name, r)
		}
	}
	return nil
}
