package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort              = 8080
	defaultDataDir           = "data"
	defaultMaxConcurrentJobs = 3
	defaultMaxUploadBytes    = 256 << 20
	defaultLogLevel          = "info"

	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config describes runtime configuration for the service.
type Config struct {
	Port              int         `yaml:"port"`
	DataDir           string      `yaml:"data_dir"`
	UploadExtensions  []string    `yaml:"upload_extensions"`
	MaxConcurrentJobs int         `yaml:"max_concurrent_jobs"`
	MaxUploadBytes    int64       `yaml:"max_upload_bytes"`
	LogLevel          string      `yaml:"log_level"`
	Store             StoreConfig `yaml:"store"`
}

// StoreConfig selects where job records are persisted.
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

func Default() Config {
	return Config{
		Port:              defaultPort,
		DataDir:           defaultDataDir,
		UploadExtensions:  []string{".zip"},
		MaxConcurrentJobs: defaultMaxConcurrentJobs,
		MaxUploadBytes:    defaultMaxUploadBytes,
		LogLevel:          defaultLogLevel,
		Store:             StoreConfig{Driver: StoreFile},
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return cfg.withDerived(), nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg.withDerived(), nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	// validate concurrency explicitly: values < 1 are not allowed
	if cfg.MaxConcurrentJobs < 1 {
		return cfg, fmt.Errorf("invalid max_concurrent_jobs: %d (must be >= 1)", cfg.MaxConcurrentJobs)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch cfg.Store.Driver {
	case "":
		cfg.Store.Driver = StoreFile
	case StoreFile, StoreSQLite:
	default:
		return cfg, fmt.Errorf("invalid store.driver: %q (want %q or %q)", cfg.Store.Driver, StoreFile, StoreSQLite)
	}
	cfg.UploadExtensions = normalizeExtensions(cfg.UploadExtensions)
	return cfg.withDerived(), nil
}

func (c Config) withDerived() Config {
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = filepath.Join(c.DataDir, "jobs.db")
	}
	return c
}

func normalizeExtensions(in []string) []string {
	if len(in) == 0 {
		return []string{".zip"}
	}
	seen := make(map[string]struct{}, len(in))
	normalized := make([]string, 0, len(in))
	for _, ext := range in {
		e := strings.ToLower(strings.TrimSpace(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		normalized = append(normalized, e)
	}
	return normalized
}
