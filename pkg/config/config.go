package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "DYCRAWLER_"

// Collision policies for downloaded files whose sanitized titles coincide
const (
	CollisionOverwrite = "overwrite"
	CollisionSuffix    = "suffix"
)

// Config holds all configuration options for the crawler
type Config struct {
	// Remote API and request headers
	Douyin DouyinConfig `yaml:"douyin" json:"douyin"`

	// Pagination settings
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Retry policy shared by listing and media requests
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// DouyinConfig holds the listing endpoint and the static headers sent with every request
type DouyinConfig struct {
	APIBaseURL     string            `yaml:"api_base_url" json:"api_base_url"`
	UserAgent      string            `yaml:"user_agent" json:"user_agent"`
	Referer        string            `yaml:"referer" json:"referer"`
	AcceptLanguage string            `yaml:"accept_language" json:"accept_language"`
	Cookie         string            `yaml:"cookie" json:"cookie"`
	ExtraHeaders   map[string]string `yaml:"extra_headers,omitempty" json:"extra_headers,omitempty"`
}

// CrawlConfig holds pagination settings
type CrawlConfig struct {
	PageSize  int           `yaml:"page_size" json:"page_size"`
	MaxPages  int           `yaml:"max_pages" json:"max_pages"`
	PageDelay time.Duration `yaml:"page_delay" json:"page_delay"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	APITimeout          time.Duration `yaml:"api_timeout" json:"api_timeout"`
	MediaTimeout        time.Duration `yaml:"media_timeout" json:"media_timeout"`
	ChunkSize           int           `yaml:"chunk_size" json:"chunk_size"`
	DownloadDelay       time.Duration `yaml:"download_delay" json:"download_delay"`
	Extension           string        `yaml:"extension" json:"extension"`
	CollisionPolicy     string        `yaml:"collision_policy" json:"collision_policy"`
}

// RetryConfig holds the retry policy for transient failures
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory     string `yaml:"base_directory" json:"base_directory"`
	FallbackDirectory string `yaml:"fallback_directory" json:"fallback_directory"`
	CreateUserFolders bool   `yaml:"create_user_folders" json:"create_user_folders"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Douyin: DouyinConfig{
			APIBaseURL:     "https://www.douyin.com",
			UserAgent:      "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Mobile Safari/537.36",
			Referer:        "https://www.douyin.com/",
			AcceptLanguage: "zh-CN,zh;q=0.9",
		},
		Crawl: CrawlConfig{
			PageSize:  18,
			MaxPages:  10,
			PageDelay: time.Second,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 1,
			APITimeout:          15 * time.Second,
			MediaTimeout:        30 * time.Second,
			ChunkSize:           8 * 1024,
			DownloadDelay:       500 * time.Millisecond,
			Extension:           "mp4",
			CollisionPolicy:     CollisionSuffix,
		},
		Retry: RetryConfig{
			MaxRetries:   3,
			BaseDelay:    time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0,
		},
		Output: OutputConfig{
			BaseDirectory:     "./downloads",
			FallbackDirectory: filepath.Join(os.TempDir(), "dycrawler"),
			CreateUserFolders: false,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from DYCRAWLER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(envPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("API_BASE_URL", &c.Douyin.APIBaseURL)
	str("USER_AGENT", &c.Douyin.UserAgent)
	str("COOKIE", &c.Douyin.Cookie)
	integer("MAX_PAGES", &c.Crawl.MaxPages)
	duration("PAGE_DELAY", &c.Crawl.PageDelay)
	integer("CONCURRENT_DOWNLOADS", &c.Download.ConcurrentDownloads)
	duration("DOWNLOAD_DELAY", &c.Download.DownloadDelay)
	str("COLLISION_POLICY", &c.Download.CollisionPolicy)
	integer("MAX_RETRIES", &c.Retry.MaxRetries)
	str("OUTPUT_DIR", &c.Output.BaseDirectory)
	str("FALLBACK_DIR", &c.Output.FallbackDirectory)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)

	if v := os.Getenv(envPrefix + "NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".dycrawler.yaml",
		".dycrawler.yml",
		filepath.Join(home, ".config", "dycrawler", "config.yaml"),
		filepath.Join(home, ".config", "dycrawler", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Douyin.APIBaseURL == "" {
		errs = append(errs, errors.New("api base URL is required"))
	}
	if c.Douyin.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required"))
	}

	if c.Crawl.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Crawl.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}
	if c.Crawl.PageDelay < 0 {
		errs = append(errs, errors.New("page delay cannot be negative"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 5 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 5"))
	}
	if c.Download.APITimeout <= 0 || c.Download.MediaTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.Download.ChunkSize <= 0 {
		errs = append(errs, errors.New("chunk size must be positive"))
	}
	if c.Download.DownloadDelay < 0 {
		errs = append(errs, errors.New("download delay cannot be negative"))
	}
	if c.Download.Extension == "" || strings.ContainsAny(c.Download.Extension, `/\.`) {
		errs = append(errs, errors.New("extension must be a bare suffix such as mp4"))
	}
	switch c.Download.CollisionPolicy {
	case CollisionOverwrite, CollisionSuffix:
	default:
		errs = append(errs, fmt.Errorf("invalid collision policy %q", c.Download.CollisionPolicy))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, errors.New("retry base delay cannot be negative"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["cookie"].(string); ok && v != "" {
		c.Douyin.Cookie = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["max-pages"].(int); ok && v > 0 {
		c.Crawl.MaxPages = v
	}
	if v, ok := flags["retries"].(int); ok && v >= 0 {
		c.Retry.MaxRetries = v
	}
	if v, ok := flags["collision"].(string); ok && v != "" {
		c.Download.CollisionPolicy = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["notify"].(bool); ok {
		c.Notifications.Enabled = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".dycrawler.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
