/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the configuration persisted to a YAML file in the user scope.
// Environment variables are read-only overrides applied at runtime. Secrets
// never live in the file: the admin password is hashed, the token-signing
// secret and the CLI admin token are kept in the OS keychain.
type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	General       GeneralConfig  `yaml:"general"`
	Server        ServerConfig   `yaml:"server"`
	Database      DatabaseConfig `yaml:"database"`
	Admin         AdminConfig    `yaml:"admin"`
	Preview       PreviewConfig  `yaml:"preview"`
	Backend       BackendConfig  `yaml:"backend"`
	Logging       LoggingConfig  `yaml:"logging"`
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type ServerConfig struct {
	Addr              string `yaml:"addr"`
	DataDir           string `yaml:"data_dir"`
	MaxUploadMB       int    `yaml:"max_upload_mb"`
	PublicBaseURL     string `yaml:"public_base_url"`
	ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

type AdminConfig struct {
	// PasswordHash is a bcrypt hash; see `tattoofonts hash-password`.
	PasswordHash string `yaml:"password_hash"`
	SessionHours int    `yaml:"session_hours"`
}

type PreviewConfig struct {
	DefaultFontSizePx float64 `yaml:"default_font_size_px"`
	DefaultColor      string  `yaml:"default_color"`
	PixelRatio        float64 `yaml:"pixel_ratio"`
	CacheMaxBytes     int64   `yaml:"cache_max_bytes"`
	PerPage           int     `yaml:"per_page"`
}

// BackendConfig is used by the CLI client talking to a running server.
type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Secrets are resolved at load time and never written to the YAML file.
type Secrets struct {
	AuthSecret    string
	AdminPassword string // plain-text fallback from the environment
	AdminToken    string // CLI session token
}

const currentConfigVersion = 1

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: currentConfigVersion,
		Server:        ServerConfig{Addr: ":8080", DataDir: "data", MaxUploadMB: 20, ShutdownTimeoutMs: 10000},
		Database:      DatabaseConfig{Driver: "sqlite"},
		Admin:         AdminConfig{SessionHours: 8},
		Preview:       PreviewConfig{DefaultFontSizePx: 56, DefaultColor: "#111111", PixelRatio: 3, CacheMaxBytes: 256 << 20, PerPage: 20},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath      = "TF_CONFIG"
	EnvTelemetryOptIn  = "TF_TELEMETRY_OPT_IN"
	EnvServerAddr      = "TF_ADDR"
	EnvDataDir         = "TF_DATA_DIR"
	EnvMaxUploadMB     = "TF_MAX_UPLOAD_MB"
	EnvPublicBaseURL   = "TF_PUBLIC_BASE_URL"
	EnvDBDriver        = "TF_DB_DRIVER"
	EnvDBDSN           = "TF_DB_DSN"
	EnvAdminHash       = "TF_ADMIN_PASSWORD_HASH"
	EnvSessionHours    = "TF_SESSION_HOURS"
	EnvPixelRatio      = "TF_PIXEL_RATIO"
	EnvPreviewCacheMax = "TF_PREVIEW_CACHE_MAX_BYTES"
	EnvBackendURL      = "TF_BACKEND_URL"
	EnvBackendTimeout  = "TF_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec = "TF_TLS_INSECURE"
	EnvLogLevel        = "TF_LOG_LEVEL"
	EnvLogFormat       = "TF_LOG_FORMAT"
	EnvLogSource       = "TF_LOG_SOURCE"
	EnvLogFile         = "TF_LOG_FILE"

	// Secrets.
	EnvAuthSecret     = "TF_AUTH_SECRET"
	EnvAdminPassword  = "TF_ADMIN_PASSWORD"
	envLegacyPassword = "ADMIN_PASSWORD"
)

// envBinding maps a dotted config key to its environment override.
type envBinding struct {
	key   string
	env   string
	apply func(cfg *AppConfig, v string)
}

var envBindings = []envBinding{
	{"general.telemetry_opt_in", EnvTelemetryOptIn, func(c *AppConfig, v string) { c.General.TelemetryOptIn = truthy(v) }},
	{"server.addr", EnvServerAddr, func(c *AppConfig, v string) { c.Server.Addr = v }},
	{"server.data_dir", EnvDataDir, func(c *AppConfig, v string) { c.Server.DataDir = v }},
	{"server.max_upload_mb", EnvMaxUploadMB, func(c *AppConfig, v string) { setInt(&c.Server.MaxUploadMB, v) }},
	{"server.public_base_url", EnvPublicBaseURL, func(c *AppConfig, v string) { c.Server.PublicBaseURL = v }},
	{"database.driver", EnvDBDriver, func(c *AppConfig, v string) { c.Database.Driver = strings.ToLower(v) }},
	{"database.dsn", EnvDBDSN, func(c *AppConfig, v string) { c.Database.DSN = v }},
	{"admin.password_hash", EnvAdminHash, func(c *AppConfig, v string) { c.Admin.PasswordHash = v }},
	{"admin.session_hours", EnvSessionHours, func(c *AppConfig, v string) { setInt(&c.Admin.SessionHours, v) }},
	{"preview.pixel_ratio", EnvPixelRatio, func(c *AppConfig, v string) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Preview.PixelRatio = f
		}
	}},
	{"preview.cache_max_bytes", EnvPreviewCacheMax, func(c *AppConfig, v string) {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Preview.CacheMaxBytes = n
		}
	}},
	{"backend.base_url", EnvBackendURL, func(c *AppConfig, v string) { c.Backend.BaseURL = v }},
	{"backend.timeout_ms", EnvBackendTimeout, func(c *AppConfig, v string) { setInt(&c.Backend.TimeoutMs, v) }},
	{"backend.tls_insecure", EnvBackendTLSInsec, func(c *AppConfig, v string) { c.Backend.TLSInsecure = truthy(v) }},
	{"logging.level", EnvLogLevel, func(c *AppConfig, v string) { c.Logging.Level = strings.ToLower(v) }},
	{"logging.format", EnvLogFormat, func(c *AppConfig, v string) { c.Logging.Format = strings.ToLower(v) }},
	{"logging.source", EnvLogSource, func(c *AppConfig, v string) { c.Logging.Source = truthy(v) }},
	{"logging.file", EnvLogFile, func(c *AppConfig, v string) { c.Logging.File = v }},
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// ConfigPath returns the per-user config file path; TF_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "tattoofonts", "config.yaml"), nil
}

// Load reads the config file (if present) over the defaults, applies
// environment overrides and resolves secrets. A malformed file is an error;
// a missing one is not.
func Load() (AppConfig, Secrets, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, Secrets{}, err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), Secrets{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, Secrets{}, fmt.Errorf("read %s: %w", path, err)
	}
	normalize(&cfg)
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, Secrets{}, err
	}
	return cfg, loadSecrets(), nil
}

// Save writes the user config YAML and persists the CLI admin token into
// the OS keyring when non-empty.
func Save(cfg AppConfig, adminToken string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if adminToken != "" {
		if err := tokenStore.Set(keyringService, keyringAdminToken, adminToken); err != nil {
			return fmt.Errorf("store admin token: %w", err)
		}
	}
	return nil
}

// normalize fills zero values left by a sparse file with defaults.
func normalize(cfg *AppConfig) {
	d := Defaults()
	if cfg.ConfigVersion == 0 {
		cfg.ConfigVersion = d.ConfigVersion
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if strings.TrimSpace(cfg.Server.DataDir) == "" {
		cfg.Server.DataDir = d.Server.DataDir
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = d.Server.MaxUploadMB
	}
	if cfg.Server.ShutdownTimeoutMs <= 0 {
		cfg.Server.ShutdownTimeoutMs = d.Server.ShutdownTimeoutMs
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = d.Database.Driver
	}
	if cfg.Admin.SessionHours <= 0 {
		cfg.Admin.SessionHours = d.Admin.SessionHours
	}
	if cfg.Preview.DefaultFontSizePx <= 0 {
		cfg.Preview.DefaultFontSizePx = d.Preview.DefaultFontSizePx
	}
	if strings.TrimSpace(cfg.Preview.DefaultColor) == "" {
		cfg.Preview.DefaultColor = d.Preview.DefaultColor
	}
	if cfg.Preview.PixelRatio <= 0 {
		cfg.Preview.PixelRatio = d.Preview.PixelRatio
	}
	if cfg.Preview.PerPage <= 0 {
		cfg.Preview.PerPage = d.Preview.PerPage
	}
	if cfg.Backend.TimeoutMs <= 0 {
		cfg.Backend.TimeoutMs = d.Backend.TimeoutMs
	}
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
}

func applyEnvOverrides(cfg *AppConfig) {
	for _, b := range envBindings {
		if v := strings.TrimSpace(os.Getenv(b.env)); v != "" {
			b.apply(cfg, v)
		}
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	for _, b := range envBindings {
		if b.key == key && os.Getenv(b.env) != "" {
			return b.env, true
		}
	}
	return "", false
}

// Validate rejects settings the server cannot start with.
func (c AppConfig) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver: unsupported %q (want sqlite or postgres)", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn: required for postgres")
	}
	if c.Preview.PixelRatio < 1 || c.Preview.PixelRatio > 8 {
		return fmt.Errorf("preview.pixel_ratio: %v out of range [1,8]", c.Preview.PixelRatio)
	}
	if c.Server.MaxUploadMB > 200 {
		return fmt.Errorf("server.max_upload_mb: %d exceeds 200", c.Server.MaxUploadMB)
	}
	return nil
}

// DSN returns the database DSN, defaulting to a SQLite file in the data dir.
func (c AppConfig) DSN() string {
	if strings.TrimSpace(c.Database.DSN) != "" {
		return c.Database.DSN
	}
	return filepath.Join(c.Server.DataDir, "tattoofonts.db")
}

func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutMs) * time.Millisecond
}

// SessionTTL is the lifetime of admin sessions.
func (a AdminConfig) SessionTTL() time.Duration { return time.Duration(a.SessionHours) * time.Hour }

// Timeout returns the client timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Service/keys for OS keyring.
const (
	keyringService    = "tattoofonts"
	keyringAuthSecret = "auth_secret"
	keyringAdminToken = "admin_token"
)

func loadSecrets() Secrets {
	s := Secrets{AdminPassword: os.Getenv(EnvAdminPassword)}
	if s.AdminPassword == "" {
		s.AdminPassword = os.Getenv(envLegacyPassword)
	}
	s.AdminToken, _ = tokenStore.Get(keyringService, keyringAdminToken)
	s.AuthSecret = authSecret()
	return s
}

// authSecret prefers the environment, then the keyring. A missing secret
// is generated and stored; when the keyring is unavailable the generated
// secret only lives for this process and sessions end on restart.
func authSecret() string {
	if v := strings.TrimSpace(os.Getenv(EnvAuthSecret)); v != "" {
		return v
	}
	if v, err := tokenStore.Get(keyringService, keyringAuthSecret); err == nil && v != "" {
		return v
	}
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	secret := hex.EncodeToString(buf)
	_ = tokenStore.Set(keyringService, keyringAuthSecret, secret)
	return secret
}

// ClearAdminToken removes the CLI session token from the keyring.
func ClearAdminToken() error {
	err := tokenStore.Delete(keyringService, keyringAdminToken)
	if errors.Is(err, ErrSecretNotFound) {
		return nil
	}
	return err
}
