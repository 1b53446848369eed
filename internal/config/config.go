// Package config loads hacmanager configuration from a JSON portals file
// layered with environment variables (optionally sourced from a .env file).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Credentials holds a portal login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Portal describes one HAC instance.
type Portal struct {
	Name               string      `json:"name"`
	BaseURL            string      `json:"baseUrl"`
	InsecureSkipVerify bool        `json:"insecureSkipVerify,omitempty"`
	Credentials        Credentials `json:"credentials"`
}

// Endpoints holds the path suffixes resolved against each portal's base URL.
// All six are derived from the same base URL at client construction.
type Endpoints struct {
	CSRFPreLogin  string `json:"csrfBeforeLogin"`
	CSRFPostLogin string `json:"csrfAfterLogin"`
	Login         string `json:"login"`
	Data          string `json:"data"`
	Zip           string `json:"zip"`
	Download      string `json:"download"`
}

// DefaultEndpoints returns the HAC endpoint conventions.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		CSRFPreLogin:  "/login",
		CSRFPostLogin: "/",
		Login:         "/j_spring_security_check",
		Data:          "/monitoring/logs/data",
		Zip:           "/monitoring/logs/zip",
		Download:      "/monitoring/logs/download",
	}
}

// SinkConfig selects an optional storage sink for relocated logs.
type SinkConfig struct {
	Backend string       `json:"backend,omitempty"` // "", "local" or "s3"
	Local   LocalSink    `json:"local,omitempty"`
	S3      S3SinkConfig `json:"s3,omitempty"`
}

// LocalSink holds local sink settings.
type LocalSink struct {
	RootPath string `json:"rootPath"`
}

// S3SinkConfig holds S3 sink settings.
type S3SinkConfig struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	Region    string `json:"region"`
}

// Config is the full runtime configuration.
type Config struct {
	Environment  string              `json:"environment"`
	Environments map[string][]Portal `json:"environments"`
	Endpoints    Endpoints           `json:"endpoints"`
	DownloadsDir string              `json:"downloadsDir"`
	LogLevel     string              `json:"logLevel"`
	LogFormat    string              `json:"logFormat"`
	MetricsAddr  string              `json:"metricsAddr"`
	Sink         SinkConfig          `json:"sink"`
}

// Load reads the portals file at path and applies environment overrides.
// A .env file next to the working directory is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{
		Endpoints:    DefaultEndpoints(),
		DownloadsDir: "downloads",
		LogLevel:     "info",
		LogFormat:    "console",
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Environment = envOr("HAC_ENVIRONMENT", cfg.Environment)
	cfg.DownloadsDir = envOr("HAC_DOWNLOADS_DIR", cfg.DownloadsDir)
	cfg.LogLevel = envOr("HAC_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("HAC_LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsAddr = envOr("METRICS_ADDR", cfg.MetricsAddr)

	fillEndpointDefaults(&cfg.Endpoints)

	if cfg.Environment == "" {
		return nil, fmt.Errorf("no environment selected (set \"environment\" in %s or HAC_ENVIRONMENT)", path)
	}
	if _, ok := cfg.Environments[cfg.Environment]; !ok {
		return nil, fmt.Errorf("environment %q not present in %s", cfg.Environment, path)
	}

	// Credentials may live outside the portals file: <NAME>_USERNAME /
	// <NAME>_PASSWORD override whatever the file carries.
	portals := cfg.Environments[cfg.Environment]
	for i := range portals {
		key := EnvKey(portals[i].Name)
		portals[i].Credentials.Username = envOr(key+"_USERNAME", portals[i].Credentials.Username)
		portals[i].Credentials.Password = envOr(key+"_PASSWORD", portals[i].Credentials.Password)
	}

	return cfg, nil
}

// Portals returns the portal list for the selected environment.
func (c *Config) Portals() []Portal {
	return c.Environments[c.Environment]
}

// EnvKey converts a portal name into an environment variable prefix.
func EnvKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func fillEndpointDefaults(e *Endpoints) {
	def := DefaultEndpoints()
	if e.CSRFPreLogin == "" {
		e.CSRFPreLogin = def.CSRFPreLogin
	}
	if e.CSRFPostLogin == "" {
		e.CSRFPostLogin = def.CSRFPostLogin
	}
	if e.Login == "" {
		e.Login = def.Login
	}
	if e.Data == "" {
		e.Data = def.Data
	}
	if e.Zip == "" {
		e.Zip = def.Zip
	}
	if e.Download == "" {
		e.Download = def.Download
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
