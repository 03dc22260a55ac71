package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileName is the main configuration file looked up under the config dir.
	DefaultConfigFileName = "config.yaml"

	// DefaultLabelsFileName maps components to their allowed labels.
	DefaultLabelsFileName = "labels.yaml"
)

// Config represents the application configuration
type Config struct {
	Server          ServerConfig      `yaml:"server" validate:"required"`
	Boards          []BoardConfig     `yaml:"boards" validate:"min=1,dive"`
	Labels          LabelsConfig      `yaml:"labels"`
	Transitions     TransitionsConfig `yaml:"transitions"`
	Logging         LoggingConfig     `yaml:"logging"`
	Editor          string            `yaml:"editor"`            // editor command, falls back to $EDITOR then vi
	CheckForUpdates bool              `yaml:"check_for_updates"` // query the release feed on startup
}

// ServerConfig holds the tracker connection settings
type ServerConfig struct {
	URL                string `yaml:"url" validate:"required,url"`
	Auth               string `yaml:"auth" validate:"oneof=basic kerberos"` // "basic" or "kerberos"
	Username           string `yaml:"username" validate:"required_if=Auth basic"`
	Password           string `yaml:"password"`  // optional, prompted interactively when empty
	CABundle           string `yaml:"ca_bundle"` // path to a PEM bundle for custom CAs
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	Timeout            string `yaml:"timeout"`    // e.g. "30s"
	RateLimit          int    `yaml:"rate_limit"` // requests per second
}

// BoardConfig is one configured board alias
type BoardConfig struct {
	Alias   string `yaml:"alias"`                      // optional short name, defaults to the board value
	Board   string `yaml:"board" validate:"required"`  // board name or numeric id
	Project string `yaml:"project" validate:"required"` // project key, name, or numeric id
}

// LabelsConfig controls component/label validation
type LabelsConfig struct {
	Check bool   `yaml:"check"`
	File  string `yaml:"file"` // path to the component->labels map, relative paths resolve against the config dir
}

// TransitionsConfig tunes how workflow transitions are presented
type TransitionsConfig struct {
	ExcludeMarker string `yaml:"exclude_marker"` // transitions whose name contains this are hidden
}

// LoggingConfig controls the diagnostic log
type LoggingConfig struct {
	Level  string   `yaml:"level"`  // "debug", "info", "warn", "error"
	Output []string `yaml:"output"` // "console", "file"
}

// Name returns the alias the board is addressed by.
func (b BoardConfig) Name() string {
	if b.Alias != "" {
		return b.Alias
	}
	return b.Board
}

// RequestTimeout parses the configured timeout, defaulting to 30s.
func (s ServerConfig) RequestTimeout() time.Duration {
	if s.Timeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Auth:      "basic",
			Timeout:   "30s",
			RateLimit: 5,
		},
		Labels: LabelsConfig{
			Check: false,
			File:  DefaultLabelsFileName,
		},
		Transitions: TransitionsConfig{
			ExcludeMarker: "Parallel Team",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"file"},
		},
		CheckForUpdates: true,
	}
}

// DefaultConfigDir returns the per-user config directory
// ($XDG_CONFIG_HOME/tabula, falling back to ~/.config/tabula).
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tabula")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".tabula")
	}
	return filepath.Join(home, ".config", "tabula")
}

// DefaultConfigPath returns the default main config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), DefaultConfigFileName)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env -> CLI flags.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if url := os.Getenv("TABULA_SERVER_URL"); url != "" {
		config.Server.URL = url
	}
	if auth := os.Getenv("TABULA_AUTH"); auth != "" {
		config.Server.Auth = auth
	}
	if username := os.Getenv("TABULA_USERNAME"); username != "" {
		config.Server.Username = username
	}
	if password := os.Getenv("TABULA_PASSWORD"); password != "" {
		config.Server.Password = password
	}
	if caBundle := os.Getenv("TABULA_CA_BUNDLE"); caBundle != "" {
		config.Server.CABundle = caBundle
	}
	if insecure := os.Getenv("TABULA_INSECURE_SKIP_VERIFY"); insecure != "" {
		if v, err := strconv.ParseBool(insecure); err == nil {
			config.Server.InsecureSkipVerify = v
		}
	}
	if timeout := os.Getenv("TABULA_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Server.Timeout = timeout
		}
	}
	if level := os.Getenv("TABULA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("TABULA_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	if editor := os.Getenv("TABULA_EDITOR"); editor != "" {
		config.Editor = editor
	}
	if check := os.Getenv("TABULA_CHECK_FOR_UPDATES"); check != "" {
		if v, err := strconv.ParseBool(check); err == nil {
			config.CheckForUpdates = v
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, logLevel string) {
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// FindBoard resolves a board alias to its configuration. An empty alias
// selects the sole configured board, or fails when several are configured.
func (c *Config) FindBoard(alias string) (*BoardConfig, error) {
	if alias == "" {
		if len(c.Boards) == 1 {
			return &c.Boards[0], nil
		}
		return nil, fmt.Errorf("multiple boards configured, select one of: %s", strings.Join(c.BoardNames(), ", "))
	}
	lower := strings.ToLower(alias)
	for i := range c.Boards {
		if strings.ToLower(c.Boards[i].Name()) == lower || strings.ToLower(c.Boards[i].Board) == lower {
			return &c.Boards[i], nil
		}
	}
	return nil, fmt.Errorf("no board configured with alias '%s'", alias)
}

// BoardNames lists the configured board aliases.
func (c *Config) BoardNames() []string {
	names := make([]string, 0, len(c.Boards))
	for _, b := range c.Boards {
		names = append(names, b.Name())
	}
	return names
}

// LabelsFilePath resolves the labels file path against the config dir when relative.
func (c *Config) LabelsFilePath() string {
	if c.Labels.File == "" {
		return ""
	}
	if filepath.IsAbs(c.Labels.File) {
		return c.Labels.File
	}
	return filepath.Join(DefaultConfigDir(), c.Labels.File)
}

// LoadComponentLabels reads a component->allowed-labels map from a YAML file.
// A missing path yields an empty map, not an error.
func LoadComponentLabels(path string) (map[string][]string, error) {
	if path == "" {
		return map[string][]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, nil
		}
		return nil, fmt.Errorf("failed to read labels file %s: %w", path, err)
	}
	labels := map[string][]string{}
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse labels file %s: %w", path, err)
	}
	return labels, nil
}

const starterConfig = `# tabula configuration
server:
  # Base URL of your issue tracker.
  url: https://jira.example.com
  # Authentication mode: "basic" (username + password session) or "kerberos".
  auth: basic
  username: your-user-id
  # Leave the password empty to be prompted at startup.
  password: ""
  # Optional custom CA bundle (PEM). Leave empty to use system roots.
  ca_bundle: ""
  # Disable certificate verification. A warning is printed when enabled.
  insecure_skip_verify: false

boards:
  # Each entry maps an alias to a board and its project.
  - alias: main
    board: "My Team Board"
    project: MYPROJ

labels:
  # When true, labels are validated against the component map in 'file'.
  check: false
  file: labels.yaml

transitions:
  # Transitions whose name contains this marker are hidden from selection.
  exclude_marker: "Parallel Team"

logging:
  level: info
  output: [file]

# Editor used for multi-line flows. Falls back to $EDITOR, then vi.
editor: ""

check_for_updates: true
`

const starterLabels = `# Component -> allowed labels map, used when labels.check is enabled.
# Example:
# backend:
#   - bug
#   - urgent
`

// WriteStarterFiles creates a commented starter config and labels file under
// dir with private permissions (0700 dir, 0600 files). Existing files are
// never overwritten.
func WriteStarterFiles(dir string) (configPath, labelsPath string, err error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", fmt.Errorf("failed to create config dir %s: %w", dir, err)
	}

	configPath = filepath.Join(dir, DefaultConfigFileName)
	labelsPath = filepath.Join(dir, DefaultLabelsFileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(starterConfig), 0o600); err != nil {
			return "", "", fmt.Errorf("failed to write %s: %w", configPath, err)
		}
	}
	if _, err := os.Stat(labelsPath); os.IsNotExist(err) {
		if err := os.WriteFile(labelsPath, []byte(starterLabels), 0o600); err != nil {
			return "", "", fmt.Errorf("failed to write %s: %w", labelsPath, err)
		}
	}
	return configPath, labelsPath, nil
}
