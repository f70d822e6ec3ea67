package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds daemon runtime configuration.
type Config struct {
	Listen       string // JSON-RPC listener address
	HTTPAddr     string // HTTP management / health
	HTTPToken    string // optional token for HTTP management endpoints
	SettingsPath string // settings file (~/.seekd/settings.toml)
	LogLevel     string // debug|info|warn|error

	RipgrepPath       string   // explicit rg executable path (tried after the env override)
	MaxResults        int      // default result cap per search
	WalkerConcurrency int      // limiter width for the fallback walker
	MaxFileSize       int64    // files larger than this are skipped by the walker
	ExcludeDirs       []string // smart-exclude directory names
	BinaryExtensions  []string // extensions the walker never reads
}

func defaults(v *viper.Viper) {
	v.SetDefault("LISTEN", "127.0.0.1:7043")
	v.SetDefault("HTTP_ADDR", "127.0.0.1:7044")
	v.SetDefault("HTTP_TOKEN", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RIPGREP_PATH", "")
	v.SetDefault("MAX_RESULTS", 10000)
	v.SetDefault("WALKER_CONCURRENCY", 100)
	v.SetDefault("MAX_FILE_SIZE", 1<<20)
	v.SetDefault("EXCLUDE_DIRS", []string{
		".git", ".hg", ".svn", "node_modules", "vendor", "target",
		"build", "dist", "out", "__pycache__", ".venv", "venv",
		".idea", ".vscode", ".gradle", "bower_components",
	})
	v.SetDefault("BINARY_EXTENSIONS", []string{
		".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".webp",
		".pdf", ".zip", ".tar", ".gz", ".bz2", ".xz", ".7z", ".rar",
		".exe", ".dll", ".so", ".dylib", ".a", ".o", ".obj", ".bin",
		".class", ".jar", ".war", ".pyc", ".wasm",
		".mp3", ".mp4", ".avi", ".mov", ".mkv", ".wav", ".flac", ".ogg",
		".ttf", ".otf", ".woff", ".woff2", ".eot",
		".db", ".sqlite", ".sqlite3",
	})
}

// Load reads config from ~/.seekd/settings.toml and applies defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("user home: %w", err)
	}

	settingsPath := filepath.Join(home, ".seekd", "settings.toml")

	v := viper.New()
	v.SetConfigFile(settingsPath)
	v.SetConfigType("toml")
	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
		// missing file: continue with defaults
	}

	cfg := &Config{
		Listen:            v.GetString("LISTEN"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		HTTPToken:         v.GetString("HTTP_TOKEN"),
		SettingsPath:      settingsPath,
		LogLevel:          v.GetString("LOG_LEVEL"),
		RipgrepPath:       v.GetString("RIPGREP_PATH"),
		MaxResults:        v.GetInt("MAX_RESULTS"),
		WalkerConcurrency: v.GetInt("WALKER_CONCURRENCY"),
		MaxFileSize:       v.GetInt64("MAX_FILE_SIZE"),
		ExcludeDirs:       v.GetStringSlice("EXCLUDE_DIRS"),
		BinaryExtensions:  v.GetStringSlice("BINARY_EXTENSIONS"),
	}

	return cfg, nil
}

// Reload re-reads settings.toml and updates runtime fields (excluding listener
// addresses, which require a restart).
func (c *Config) Reload() error {
	v := viper.New()
	v.SetConfigFile(c.SettingsPath)
	v.SetConfigType("toml")
	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return fmt.Errorf("read config: %w", err)
			}
		}
		// missing file: keep defaults
	}

	c.HTTPToken = v.GetString("HTTP_TOKEN")
	c.RipgrepPath = v.GetString("RIPGREP_PATH")
	c.MaxResults = v.GetInt("MAX_RESULTS")
	c.WalkerConcurrency = v.GetInt("WALKER_CONCURRENCY")
	c.MaxFileSize = v.GetInt64("MAX_FILE_SIZE")
	c.ExcludeDirs = v.GetStringSlice("EXCLUDE_DIRS")
	c.BinaryExtensions = v.GetStringSlice("BINARY_EXTENSIONS")
	return nil
}
