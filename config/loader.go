package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format represents the configuration file format
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Loader handles configuration loading from files and the environment.
type Loader struct {
	searchPaths   []string
	envPrefix     string
	defaultConfig *Config
}

// NewLoader creates a loader with the standard search paths.
func NewLoader() *Loader {
	return &Loader{
		searchPaths: []string{
			".",
			"./config",
			"/etc/flexx",
			os.Getenv("HOME") + "/.flexx",
		},
		envPrefix:     "FLEXX",
		defaultConfig: DefaultConfig(),
	}
}

// SetSearchPaths sets the configuration file search paths.
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// SetEnvPrefix sets the environment variable prefix.
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetDefaultConfig sets the configuration used for missing fields.
func (l *Loader) SetDefaultConfig(config *Config) *Loader {
	l.defaultConfig = config
	return l
}

// Load loads configuration from a file, or the defaults when filename is
// empty, then applies environment overrides and validates.
func (l *Loader) Load(filename string) (*Config, error) {
	if filename != "" {
		return l.LoadFromFile(filename)
	}

	config := l.defaults()
	if err := l.applyEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific file.
func (l *Loader) LoadFromFile(filename string) (*Config, error) {
	format, err := formatForFile(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return l.finish(data, format)
}

// LoadFromReader loads configuration from an io.Reader.
func (l *Loader) LoadFromReader(reader io.Reader, format Format) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read config data: %w", err)
	}
	return l.finish(data, format)
}

// AutoLoad discovers a configuration file on the search paths, falling
// back to defaults plus environment overrides when none exists.
func (l *Loader) AutoLoad() (*Config, error) {
	filename, err := l.findConfigFile()
	if err == ErrConfigFileNotFound {
		return l.Load("")
	}
	if err != nil {
		return nil, err
	}
	return l.LoadFromFile(filename)
}

// finish parses, merges over defaults, applies the environment and
// validates.
func (l *Loader) finish(data []byte, format Format) (*Config, error) {
	parsed, err := parseConfig(data, format)
	if err != nil {
		return nil, err
	}
	config := l.merge(parsed)
	if err := l.applyEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (l *Loader) defaults() *Config {
	if l.defaultConfig != nil {
		copied := *l.defaultConfig
		return &copied
	}
	return DefaultConfig()
}

// findConfigFile searches for configuration files on the search paths.
func (l *Loader) findConfigFile() (string, error) {
	filenames := []string{
		"flexx.yaml", "flexx.yml", "flexx.json",
		"config.yaml", "config.yml", "config.json",
	}
	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}
	return "", ErrConfigFileNotFound
}

// formatForFile resolves the format from a file extension.
func formatForFile(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

// parseConfig parses configuration data based on format.
func parseConfig(data []byte, format Format) (*Config, error) {
	config := &Config{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return config, nil
}

// applyEnv overrides configuration fields from environment variables.
func (l *Loader) applyEnv(config *Config) error {
	if val := os.Getenv(l.envPrefix + "_APP_NAME"); val != "" {
		config.App.Name = val
	}
	if val := os.Getenv(l.envPrefix + "_APP_ENVIRONMENT"); val != "" {
		config.App.Environment = Environment(val)
	}
	if val := os.Getenv(l.envPrefix + "_APP_DEBUG"); val != "" {
		config.App.Debug = strings.ToLower(val) == "true"
	}

	if val := os.Getenv(l.envPrefix + "_TCP_ADDRESS"); val != "" {
		config.Server.TCP.Address = val
	}
	if val := os.Getenv(l.envPrefix + "_TCP_ENABLED"); val != "" {
		config.Server.TCP.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv(l.envPrefix + "_TCP_HEARTBEAT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%w: %s_TCP_HEARTBEAT: %v", ErrInvalidConfig, l.envPrefix, err)
		}
		config.Server.TCP.HeartbeatInterval = d
	}

	if val := os.Getenv(l.envPrefix + "_WS_ADDRESS"); val != "" {
		config.Server.WebSocket.Address = val
	}
	if val := os.Getenv(l.envPrefix + "_WS_ENABLED"); val != "" {
		config.Server.WebSocket.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv(l.envPrefix + "_WS_PATH"); val != "" {
		config.Server.WebSocket.Path = val
	}

	if val := os.Getenv(l.envPrefix + "_LOOP_MAILBOX_SIZE"); val != "" {
		var size int
		if _, err := fmt.Sscanf(val, "%d", &size); err != nil {
			return fmt.Errorf("%w: %s_LOOP_MAILBOX_SIZE: %v", ErrInvalidConfig, l.envPrefix, err)
		}
		config.Loop.MailboxSize = size
	}
	if val := os.Getenv(l.envPrefix + "_MAX_SESSIONS"); val != "" {
		var limit int
		if _, err := fmt.Sscanf(val, "%d", &limit); err != nil {
			return fmt.Errorf("%w: %s_MAX_SESSIONS: %v", ErrInvalidConfig, l.envPrefix, err)
		}
		config.Session.MaxSessions = limit
	}
	return nil
}

// merge fills fields missing from a parsed config with the defaults.
func (l *Loader) merge(parsed *Config) *Config {
	merged := l.defaults()

	if parsed.App.Name != "" {
		merged.App.Name = parsed.App.Name
	}
	if parsed.App.Environment != "" {
		merged.App.Environment = parsed.App.Environment
	}
	merged.App.Debug = parsed.App.Debug

	merged.Server.TCP.Enabled = parsed.Server.TCP.Enabled
	if parsed.Server.TCP.Address != "" {
		merged.Server.TCP.Address = parsed.Server.TCP.Address
	}
	if parsed.Server.TCP.WriteTimeout != 0 {
		merged.Server.TCP.WriteTimeout = parsed.Server.TCP.WriteTimeout
	}
	if parsed.Server.TCP.HeartbeatInterval != 0 {
		merged.Server.TCP.HeartbeatInterval = parsed.Server.TCP.HeartbeatInterval
	}

	merged.Server.WebSocket.Enabled = parsed.Server.WebSocket.Enabled
	if parsed.Server.WebSocket.Address != "" {
		merged.Server.WebSocket.Address = parsed.Server.WebSocket.Address
	}
	if parsed.Server.WebSocket.Path != "" {
		merged.Server.WebSocket.Path = parsed.Server.WebSocket.Path
	}

	if parsed.Loop.MailboxSize != 0 {
		merged.Loop.MailboxSize = parsed.Loop.MailboxSize
	}
	if parsed.Session.MaxSessions != 0 {
		merged.Session.MaxSessions = parsed.Session.MaxSessions
	}

	if parsed.Custom != nil {
		if merged.Custom == nil {
			merged.Custom = make(map[string]interface{})
		}
		for k, v := range parsed.Custom {
			merged.Custom[k] = v
		}
	}
	return merged
}
