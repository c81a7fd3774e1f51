// Package config loads GFM configuration from defaults, a config.yaml file and GFM_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every configuration section.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	LiveLog   LiveLogConfig   `mapstructure:"livelog" yaml:"livelog"`
	Install   InstallConfig   `mapstructure:"install" yaml:"install"`
	Deploy    DeployConfig    `mapstructure:"deploy" yaml:"deploy"`
	Emulators EmulatorsConfig `mapstructure:"emulators" yaml:"emulators"`
	Secrets   SecretsConfig   `mapstructure:"secrets" yaml:"secrets"`
	CLI       CLIConfig       `mapstructure:"cli" yaml:"cli"`
	Admin     AdminConfig     `mapstructure:"admin" yaml:"admin"`
	Project   ProjectConfig   `mapstructure:"project" yaml:"project"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout" yaml:"readTimeout"`   // seconds
	WriteTimeout int    `mapstructure:"writeTimeout" yaml:"writeTimeout"` // seconds, 0 disables
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	OutputPath string `mapstructure:"outputPath" yaml:"outputPath"`
}

// LiveLogConfig configures the per-client WebSocket channel.
type LiveLogConfig struct {
	Path         string `mapstructure:"path" yaml:"path"`
	PingInterval int    `mapstructure:"pingInterval" yaml:"pingInterval"` // seconds
}

// InstallConfig configures dependency installation.
type InstallConfig struct {
	Timeout     int      `mapstructure:"timeout" yaml:"timeout"` // seconds
	BunPath     string   `mapstructure:"bunPath" yaml:"bunPath"`
	PackageDirs []string `mapstructure:"packageDirs" yaml:"packageDirs"`
}

// DeployConfig configures deployments.
type DeployConfig struct {
	CancelGrace int `mapstructure:"cancelGrace" yaml:"cancelGrace"` // seconds between SIGTERM and SIGKILL
}

// EmulatorsConfig configures the local emulator suite.
type EmulatorsConfig struct {
	ExportDir       string   `mapstructure:"exportDir" yaml:"exportDir"`
	ProcessMatch    string   `mapstructure:"processMatch" yaml:"processMatch"`
	ReadyPhrases    []string `mapstructure:"readyPhrases" yaml:"readyPhrases"`
	ShutdownPhrases []string `mapstructure:"shutdownPhrases" yaml:"shutdownPhrases"`
	ReadyTimeout    int      `mapstructure:"readyTimeout" yaml:"readyTimeout"` // seconds, 0 disables
}

// SecretsConfig holds Secret Manager deadlines.
type SecretsConfig struct {
	AccessTimeout int `mapstructure:"accessTimeout" yaml:"accessTimeout"` // seconds
	CreateTimeout int `mapstructure:"createTimeout" yaml:"createTimeout"` // seconds
}

// CLIConfig locates the external command line tools.
type CLIConfig struct {
	FirebaseBin  string `mapstructure:"firebaseBin" yaml:"firebaseBin"`
	GcloudBin    string `mapstructure:"gcloudBin" yaml:"gcloudBin"`
	NpmBin       string `mapstructure:"npmBin" yaml:"npmBin"`
	QueryTimeout int    `mapstructure:"queryTimeout" yaml:"queryTimeout"` // seconds
}

// AdminConfig configures Admin SDK sessions.
type AdminConfig struct {
	// StorageBucket overrides the default "<projectId>.appspot.com" bucket.
	// A "%s" in the value is replaced by the project ID.
	StorageBucket string `mapstructure:"storageBucket" yaml:"storageBucket"`
}

// ProjectConfig holds project directory defaults.
type ProjectConfig struct {
	DefaultDir string `mapstructure:"defaultDir" yaml:"defaultDir"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlpEndpoint" yaml:"otlpEndpoint"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Addr returns host:port.
func (s *ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration { return seconds(s.ReadTimeout) }

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration { return seconds(s.WriteTimeout) }

// PingIntervalDuration returns the heartbeat period.
func (l *LiveLogConfig) PingIntervalDuration() time.Duration { return seconds(l.PingInterval) }

// TimeoutDuration returns the install timeout.
func (i *InstallConfig) TimeoutDuration() time.Duration { return seconds(i.Timeout) }

// CancelGraceDuration returns the SIGTERM to SIGKILL grace period.
func (d *DeployConfig) CancelGraceDuration() time.Duration { return seconds(d.CancelGrace) }

// ReadyTimeoutDuration returns the emulator readiness warning delay.
func (e *EmulatorsConfig) ReadyTimeoutDuration() time.Duration { return seconds(e.ReadyTimeout) }

// AccessTimeoutDuration returns the secret access deadline.
func (s *SecretsConfig) AccessTimeoutDuration() time.Duration { return seconds(s.AccessTimeout) }

// CreateTimeoutDuration returns the secret creation deadline.
func (s *SecretsConfig) CreateTimeoutDuration() time.Duration { return seconds(s.CreateTimeout) }

// QueryTimeoutDuration returns the deadline for short synchronous CLI queries.
func (c *CLIConfig) QueryTimeoutDuration() time.Duration { return seconds(c.QueryTimeout) }

// BucketFor returns the storage bucket for a project.
func (a *AdminConfig) BucketFor(projectID string) string {
	if a.StorageBucket == "" {
		return projectID + ".appspot.com"
	}
	if strings.Contains(a.StorageBucket, "%s") {
		return fmt.Sprintf(a.StorageBucket, projectID)
	}
	return a.StorageBucket
}

func detectDefaultLogFormat() string {
	switch os.Getenv("GFM_ENV") {
	case "production", "prod":
		return "json"
	}
	return "text"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("livelog.path", "/api/gfm/logs")
	v.SetDefault("livelog.pingInterval", 60)

	v.SetDefault("install.timeout", 300)
	v.SetDefault("install.bunPath", "/usr/local/bin/bun")
	v.SetDefault("install.packageDirs", []string{"./functions", "./app", "./public", "./trust"})

	v.SetDefault("deploy.cancelGrace", 2)

	v.SetDefault("emulators.exportDir", "emulator_exports")
	v.SetDefault("emulators.processMatch", "firebase emulators")
	v.SetDefault("emulators.readyPhrases", []string{"All emulators ready!"})
	v.SetDefault("emulators.shutdownPhrases", []string{"Shutting down emulators."})
	v.SetDefault("emulators.readyTimeout", 0)

	v.SetDefault("secrets.accessTimeout", 5)
	v.SetDefault("secrets.createTimeout", 10)

	v.SetDefault("cli.firebaseBin", "firebase")
	v.SetDefault("cli.gcloudBin", "gcloud")
	v.SetDefault("cli.npmBin", "npm")
	v.SetDefault("cli.queryTimeout", 30)

	v.SetDefault("admin.storageBucket", "")
	v.SetDefault("project.defaultDir", "")
	v.SetDefault("tracing.otlpEndpoint", "")
}

// Load reads configuration from the default locations.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads config.yaml from configPath (if set), the working directory or ~/.gfm,
// then applies GFM_* environment overrides.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GFM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// camelCase keys do not map onto SNAKE_CASE env names automatically.
	_ = v.BindEnv("server.port", "GFM_SERVER_PORT", "PORT")
	_ = v.BindEnv("livelog.pingInterval", "GFM_LIVELOG_PING_INTERVAL", "PING_INTERVAL")
	_ = v.BindEnv("install.bunPath", "GFM_INSTALL_BUN_PATH")
	_ = v.BindEnv("cli.firebaseBin", "GFM_CLI_FIREBASE_BIN")
	_ = v.BindEnv("cli.gcloudBin", "GFM_CLI_GCLOUD_BIN")
	_ = v.BindEnv("project.defaultDir", "GFM_PROJECT_DEFAULT_DIR")
	_ = v.BindEnv("tracing.otlpEndpoint", "GFM_TRACING_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".gfm"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.LiveLog.PingInterval <= 0 {
		errs = append(errs, "livelog.pingInterval must be positive")
	}
	if !strings.HasPrefix(cfg.LiveLog.Path, "/") {
		errs = append(errs, "livelog.path must start with /")
	}
	if cfg.Install.Timeout <= 0 {
		errs = append(errs, "install.timeout must be positive")
	}
	if cfg.Deploy.CancelGrace < 0 {
		errs = append(errs, "deploy.cancelGrace must not be negative")
	}
	if cfg.Secrets.AccessTimeout <= 0 || cfg.Secrets.CreateTimeout <= 0 {
		errs = append(errs, "secrets timeouts must be positive")
	}
	if cfg.CLI.QueryTimeout <= 0 {
		errs = append(errs, "cli.queryTimeout must be positive")
	}
	if strings.TrimSpace(cfg.Emulators.ProcessMatch) == "" {
		errs = append(errs, "emulators.processMatch is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
