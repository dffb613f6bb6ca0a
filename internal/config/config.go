package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"minimg/internal/errors"
)

// CacheSettings tunes the lookahead loader
type CacheSettings struct {
	Radius         int `yaml:"radius"`           // Neighbours kept decoded on each side of the current image
	Workers        int `yaml:"workers"`          // Background decoder goroutines
	PollIntervalMS int `yaml:"poll_interval_ms"` // How often viewers poll for results
	WaitTimeoutMS  int `yaml:"wait_timeout_ms"`  // Shutdown deadline, 0 = wait forever
}

// ScanSettings controls which files become the path list
type ScanSettings struct {
	Recursive bool     `yaml:"recursive"` // Descend into subdirectories
	Include   []string `yaml:"include"`   // Globs a file name must match (any)
	Exclude   []string `yaml:"exclude"`   // Globs that drop a file name
	Hidden    bool     `yaml:"hidden"`    // Include dot files
	Sort      string   `yaml:"sort"`      // name, mtime or size
	Sniff     bool     `yaml:"sniff"`     // Detect images by content instead of extension
}

// UISettings selects and styles the viewer
type UISettings struct {
	Mode     string `yaml:"mode"`      // tui or gui
	Theme    string `yaml:"theme"`     // Palette name, see ListThemes
	ShowInfo bool   `yaml:"show_info"` // Show the info panel on start
}

// LoggingSettings configures internal/log
type LoggingSettings struct {
	Debug bool   `yaml:"debug"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"` // Log file; the TUI logs only here
}

// WatchSettings toggles directory change notices
type WatchSettings struct {
	Enabled bool `yaml:"enabled"`
}

// Theme is the resolved palette of 256-color codes used by the viewers
type Theme struct {
	Name     string `yaml:"name"`
	Primary  string `yaml:"primary"`  // Primary color for branding
	Success  string `yaml:"success"`  // Success message color
	Warning  string `yaml:"warning"`  // Warning message color
	Error    string `yaml:"error"`    // Error message color
	Info     string `yaml:"info"`     // Informational message color
	Emphasis string `yaml:"emphasis"` // Emphasis color for text that should stand out
	Border   string `yaml:"border"`   // Border color for frames
}

// Config represents the application configuration structure.
type Config struct {
	Cache   CacheSettings   `yaml:"cache"`
	Scan    ScanSettings    `yaml:"scan"`
	UI      UISettings      `yaml:"ui"`
	Logging LoggingSettings `yaml:"logging"`
	Watch   WatchSettings   `yaml:"watch"`
	Theme   Theme           `yaml:"-"`
}

// DefaultPath returns ~/.config/minimg/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "minimg", "config.yaml"), nil
}

// LoadConfig loads configuration from the default location
// (~/.config/minimg/config.yaml).
func LoadConfig() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFile(path)
}

// LoadConfigFile loads configuration from a specific file path.
// If the file doesn't exist, returns default configuration.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.NewConfigError("error reading config file", path, errors.ConfigNotFound, err)
	}

	// Decoding over the defaults keeps every field the file leaves unset
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError("error parsing config file", path, errors.InvalidConfig, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	cfg.ApplyTheme(cfg.UI.Theme)

	return cfg, nil
}

// defaultConfig returns the default configuration.
func defaultConfig() *Config {
	cfg := &Config{}

	cfg.Cache.Radius = 5
	cfg.Cache.Workers = 4
	cfg.Cache.PollIntervalMS = 30
	cfg.Cache.WaitTimeoutMS = 0

	cfg.Scan.Recursive = false
	cfg.Scan.Include = []string{}
	cfg.Scan.Exclude = []string{}
	cfg.Scan.Hidden = false
	cfg.Scan.Sort = "name"
	cfg.Scan.Sniff = false

	cfg.UI.Mode = "tui"
	cfg.UI.Theme = "default"
	cfg.UI.ShowInfo = false

	cfg.Watch.Enabled = true

	cfg.ApplyTheme(cfg.UI.Theme)
	return cfg
}

func (c *Config) normalize() {
	c.Scan.Sort = strings.ToLower(strings.TrimSpace(c.Scan.Sort))
	c.UI.Mode = strings.ToLower(strings.TrimSpace(c.UI.Mode))
	if c.Scan.Sort == "" {
		c.Scan.Sort = "name"
	}
	if c.UI.Mode == "" {
		c.UI.Mode = "tui"
	}
	if c.UI.Theme == "" {
		c.UI.Theme = "default"
	}
}

// SaveConfig saves the configuration to the specified file.
// It creates parent directories if they don't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewFileError("failed to create config directory", dir, errors.FileAccessDenied, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewFileError("failed to write config file", path, errors.FileAccessDenied, err)
	}

	return nil
}

// Validate checks if the configuration is valid.
// Returns a *errors.ConfigError naming the offending setting.
func (c *Config) Validate() error {
	if c == nil {
		return errors.NewConfigError("nil config", "", errors.InvalidConfig, nil)
	}

	if c.Cache.Radius < 0 {
		return errors.NewConfigError("radius must be >= 0", "cache.radius", errors.InvalidConfig, nil)
	}
	if c.Cache.Workers < 1 {
		return errors.NewConfigError("workers must be >= 1", "cache.workers", errors.InvalidConfig, nil)
	}
	if c.Cache.PollIntervalMS < 1 {
		return errors.NewConfigError("poll interval must be >= 1ms", "cache.poll_interval_ms", errors.InvalidConfig, nil)
	}
	if c.Cache.WaitTimeoutMS < 0 {
		return errors.NewConfigError("wait timeout must be >= 0", "cache.wait_timeout_ms", errors.InvalidConfig, nil)
	}

	validSorts := map[string]bool{"name": true, "mtime": true, "size": true}
	if !validSorts[c.Scan.Sort] {
		return errors.NewConfigError("invalid sort setting "+c.Scan.Sort, "scan.sort", errors.InvalidConfig, nil)
	}
	for i, pattern := range append(append([]string{}, c.Scan.Include...), c.Scan.Exclude...) {
		if strings.TrimSpace(pattern) == "" {
			return errors.NewConfigError("glob pattern cannot be empty", "scan", errors.InvalidConfig,
				errors.Newf("pattern %d", i))
		}
	}

	validModes := map[string]bool{"tui": true, "gui": true}
	if !validModes[c.UI.Mode] {
		return errors.NewConfigError("invalid ui mode "+c.UI.Mode, "ui.mode", errors.InvalidConfig, nil)
	}
	if c.UI.Theme != "" && !isTheme(c.UI.Theme) {
		return errors.NewConfigError("unknown theme "+c.UI.Theme, "ui.theme", errors.InvalidConfig, nil)
	}

	return nil
}

// New creates a new configuration instance with default values.
func New() *Config {
	return defaultConfig()
}

var themes = map[string]map[string]string{
	"default": {
		"primary":  "213", // Purple
		"success":  "114", // Green
		"warning":  "220", // Yellow
		"error":    "196", // Red
		"info":     "39",  // Blue
		"emphasis": "212", // Light Pink
		"border":   "213", // Purple
	},
	"dark": {
		"primary":  "105",
		"success":  "78",
		"warning":  "214",
		"error":    "160",
		"info":     "33",
		"emphasis": "147",
		"border":   "105",
	},
	"light": {
		"primary":  "135",
		"success":  "150",
		"warning":  "222",
		"error":    "210",
		"info":     "117",
		"emphasis": "219",
		"border":   "135",
	},
	"monochrome": {
		"primary":  "245", // Light Grey
		"success":  "252", // White
		"warning":  "241", // Medium Grey
		"error":    "232", // Black
		"info":     "248", // Grey
		"emphasis": "255", // Bright White
		"border":   "245", // Light Grey
	},
	"ocean": {
		"primary":  "31",  // Teal
		"success":  "36",  // Green-Blue
		"warning":  "220", // Yellow
		"error":    "196", // Red
		"info":     "33",  // Blue
		"emphasis": "51",  // Cyan
		"border":   "31",  // Teal
	},
	"sunset": {
		"primary":  "208", // Orange
		"success":  "154",
		"warning":  "214",
		"error":    "196",
		"info":     "69",
		"emphasis": "203",
		"border":   "208",
	},
}

func isTheme(name string) bool {
	_, ok := themes[name]
	return ok
}

// GetTheme returns a predefined palette by name.
// If the theme doesn't exist, returns the default theme.
func GetTheme(name string) map[string]string {
	if theme, exists := themes[name]; exists {
		return theme
	}
	return themes["default"]
}

// ApplyTheme resolves the palette for name into c.Theme.
func (c *Config) ApplyTheme(name string) {
	theme := GetTheme(name)

	if !isTheme(name) {
		name = "default"
	}
	c.UI.Theme = name
	c.Theme = Theme{
		Name:     name,
		Primary:  theme["primary"],
		Success:  theme["success"],
		Warning:  theme["warning"],
		Error:    theme["error"],
		Info:     theme["info"],
		Emphasis: theme["emphasis"],
		Border:   theme["border"],
	}
}

// ListThemes returns a list of available theme names.
func ListThemes() []string {
	return []string{"default", "dark", "light", "monochrome", "ocean", "sunset"}
}
