package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/semmidev/stowage/internal/domain"
)

type Config struct {
	App             AppConfig     `mapstructure:"app"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	Storage         StorageConfig `mapstructure:"storage"`
	Upload          UploadConfig  `mapstructure:"upload"`
	Fetch           FetchConfig   `mapstructure:"fetch"`
	Delete          DeleteConfig  `mapstructure:"delete"`
	Notify          NotifyConfig  `mapstructure:"notify"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	Debug    bool   `mapstructure:"debug"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`

	// AWS S3 and S3-compatible services
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	Bucket         string `mapstructure:"bucket"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	MaxRPS         int    `mapstructure:"max_rps"`

	// Local filesystem bucket
	LocalPath string `mapstructure:"local_path"`
}

type UploadConfig struct {
	Cwd              string        `mapstructure:"cwd"`
	Base             string        `mapstructure:"base"`
	KeyPrefix        string        `mapstructure:"key_prefix"`
	Glob             string        `mapstructure:"glob"`
	GlobIgnore       []string      `mapstructure:"glob_ignore"`
	Overrides        bool          `mapstructure:"overrides"`
	ParallelCount    int           `mapstructure:"parallel_count"`
	CredentialExpiry time.Duration `mapstructure:"credential_expiry"`
	Output           string        `mapstructure:"output"`
	GzipExtensions   []string      `mapstructure:"gzip_extensions"`
	ReportKey        string        `mapstructure:"report_key"`
	Schedule         string        `mapstructure:"schedule"`
}

type FetchConfig struct {
	Prefix   string `mapstructure:"prefix"`
	PageSize int    `mapstructure:"page_size"`
	Output   string `mapstructure:"output"`
}

type DeleteConfig struct {
	BatchSize int    `mapstructure:"batch_size"`
	Input     string `mapstructure:"input"`
	Output    string `mapstructure:"output"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

const (
	BackendS3    = "s3"
	BackendLocal = "local"

	// MaxDeleteBatch is the largest batch a single S3 DeleteObjects call accepts.
	MaxDeleteBatch = 1000
)

// credentialKeys maps credentials file entries to config keys.
var credentialKeys = map[string]string{
	"ACCESS_KEY": "storage.access_key",
	"SECRET_KEY": "storage.secret_key",
	"BUCKET":     "storage.bucket",
	"REGION":     "storage.region",
	"ENDPOINT":   "storage.endpoint",
}

// Option adjusts the raw settings before they are unmarshalled.
type Option func(v *viper.Viper)

// WithOverride forces key to value, above every other source.
func WithOverride(key string, value any) Option {
	return func(v *viper.Viper) {
		v.Set(key, value)
	}
}

// Load reads the YAML file at path. An empty path loads defaults, the
// credentials file and environment only.
func Load(path string, opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STOWAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	for _, opt := range opts {
		opt(v)
	}

	if err := loadCredentials(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}

	return &cfg, nil
}

// DefaultGlob selects the files directly in dist and everything under dist/static.
const DefaultGlob = "{dist/*,dist/static/**}"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stowage")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.debug", false)

	v.SetDefault("credentials_file", ".stowage")

	v.SetDefault("storage.backend", BackendS3)
	v.SetDefault("storage.region", "us-east-1")
	// Registered so AutomaticEnv can see them when unmarshalling.
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.endpoint", "")

	v.SetDefault("upload.cwd", ".")
	v.SetDefault("upload.base", "dist")
	v.SetDefault("upload.glob", DefaultGlob)
	v.SetDefault("upload.glob_ignore", []string{})
	v.SetDefault("upload.overrides", false)
	v.SetDefault("upload.parallel_count", 2)
	v.SetDefault("upload.credential_expiry", 2*time.Hour)
	v.SetDefault("upload.output", "stowage-upload.json")

	v.SetDefault("fetch.page_size", 500)
	v.SetDefault("fetch.output", "stowage-prefix-fetch.json")

	v.SetDefault("delete.batch_size", 100)
	v.SetDefault("delete.output", "stowage-batch-delete.json")
}

// loadCredentials reads the dotenv credentials file. Its values sit between
// the defaults and the config file: anything set explicitly wins.
func loadCredentials(v *viper.Viper) error {
	name := v.GetString("credentials_file")
	if name == "" {
		return nil
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.GetString("upload.cwd"), path)
	}

	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}

	for envKey, cfgKey := range credentialKeys {
		if value, ok := values[envKey]; ok {
			v.SetDefault(cfgKey, value)
		}
	}

	return nil
}

// resolvePaths makes the upload working directory absolute and anchors
// artifact paths to it. Found files are absolute, so base must be too.
func (c *Config) resolvePaths() error {
	cwd, err := filepath.Abs(c.Upload.Cwd)
	if err != nil {
		return fmt.Errorf("failed to resolve upload.cwd %q: %w", c.Upload.Cwd, err)
	}
	c.Upload.Cwd = cwd

	c.Upload.Output = c.Path(c.Upload.Output)
	c.Fetch.Output = c.Path(c.Fetch.Output)
	if c.Delete.Input == "" {
		c.Delete.Input = c.Fetch.Output
	}
	c.Delete.Input = c.Path(c.Delete.Input)
	c.Delete.Output = c.Path(c.Delete.Output)
	c.Upload.Base = c.Path(c.Upload.Base)
	if c.Storage.LocalPath != "" {
		c.Storage.LocalPath = c.Path(c.Storage.LocalPath)
	}

	return nil
}

// Path resolves p against the upload working directory. Empty stays empty.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Upload.Cwd, p)
}

func (c *Config) Validate() error {
	var err error

	switch c.Storage.Backend {
	case BackendS3:
		if c.Storage.Bucket == "" {
			err = multierr.Append(err, fmt.Errorf("storage.bucket is required"))
		}
		if c.Storage.AccessKey == "" {
			err = multierr.Append(err, fmt.Errorf("storage.access_key is required"))
		}
		if c.Storage.SecretKey == "" {
			err = multierr.Append(err, fmt.Errorf("storage.secret_key is required"))
		}
	case BackendLocal:
		if c.Storage.LocalPath == "" {
			err = multierr.Append(err, fmt.Errorf("storage.local_path is required for local backend"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend))
	}

	if c.Storage.MaxRPS < 0 {
		err = multierr.Append(err, fmt.Errorf("storage.max_rps cannot be negative"))
	}

	if c.Upload.Glob == "" {
		err = multierr.Append(err, fmt.Errorf("upload.glob is required"))
	}
	if c.Upload.ParallelCount < 1 {
		err = multierr.Append(err, fmt.Errorf("upload.parallel_count must be at least 1"))
	}
	if c.Upload.CredentialExpiry <= 0 {
		err = multierr.Append(err, fmt.Errorf("upload.credential_expiry must be positive"))
	}

	if c.Fetch.PageSize < 1 {
		err = multierr.Append(err, fmt.Errorf("fetch.page_size must be at least 1"))
	}
	if c.Delete.BatchSize < 1 || c.Delete.BatchSize > MaxDeleteBatch {
		err = multierr.Append(err, fmt.Errorf("delete.batch_size must be between 1 and %d", MaxDeleteBatch))
	}

	if t := c.Notify.Telegram; t.Enabled && (t.BotToken == "" || t.ChatID == "") {
		err = multierr.Append(err, fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled"))
	}

	return err
}

// Masked returns s with everything but the last four characters hidden.
func Masked(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
