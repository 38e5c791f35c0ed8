package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artpar/appfleet/internal/core/deployment"
	"github.com/artpar/appfleet/internal/core/priority"
	coreprovider "github.com/artpar/appfleet/internal/core/provider"
	"github.com/artpar/appfleet/internal/core/routing"
	"github.com/artpar/appfleet/internal/shell/llm"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Apps      []string        `mapstructure:"apps"`
	Priority  PriorityConfig  `mapstructure:"priority"`
	Plan      PlanConfig      `mapstructure:"plan"`
	Apply     ApplyConfig     `mapstructure:"apply"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Demo      DemoConfig      `mapstructure:"demo"`
}

// PriorityConfig holds routing priority assignment settings.
type PriorityConfig struct {
	MaxPriority   int    `mapstructure:"max_priority"`
	MaxNameLength int    `mapstructure:"max_name_length"`
	Hash          string `mapstructure:"hash"`
}

// PlanConfig holds fleet-wide plan parameters.
type PlanConfig struct {
	NamePrefix        string `mapstructure:"name_prefix"`
	OriginHeaderName  string `mapstructure:"origin_header_name"`
	OriginHeaderValue string `mapstructure:"origin_header_value"`
	ContainerPort     int    `mapstructure:"container_port"`
	CPU               int    `mapstructure:"cpu"`
	MemoryMiB         int    `mapstructure:"memory_mib"`
	DesiredCount      int    `mapstructure:"desired_count"`
	ImageTag          string `mapstructure:"image_tag"`
	MaxApps           int    `mapstructure:"max_apps"`
	SecretName        string `mapstructure:"secret_name"`
}

// ApplyConfig selects the applier.
type ApplyConfig struct {
	// Provider is "aws" or "dry-run".
	Provider string `mapstructure:"provider"`
}

// AWSConfig holds AWS settings. Empty keys fall back to the default chain.
type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	ListenerARN     string `mapstructure:"listener_arn"`
	VPCID           string `mapstructure:"vpc_id"`
	VPCName         string `mapstructure:"vpc_name"`
	Concurrency     int    `mapstructure:"concurrency"`
}

// EndpointsConfig holds values known only after the shared resources exist.
type EndpointsConfig struct {
	DistributionDomain string `mapstructure:"distribution_domain"`
	BucketName         string `mapstructure:"bucket_name"`
	CloneURLPrefix     string `mapstructure:"clone_url_prefix"`
	UserPoolID         string `mapstructure:"user_pool_id"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DemoConfig holds the demo backend configuration.
type DemoConfig struct {
	App             string        `mapstructure:"app"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	BasePath        string        `mapstructure:"base_path"`
	Backend         string        `mapstructure:"backend"`
	Model           string        `mapstructure:"model"`
	APIKey          string        `mapstructure:"api_key"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Temperature     float64       `mapstructure:"temperature"`
	InvokeTimeout   time.Duration `mapstructure:"invoke_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the demo server address in host:port format.
func (c DemoConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ResolvedBasePath returns the configured base path, defaulting to "/{app}".
func (c DemoConfig) ResolvedBasePath() string {
	if c.BasePath != "" {
		return c.BasePath
	}
	if c.App != "" {
		return routing.BasePath(c.App)
	}
	return ""
}

// =============================================================================
// Derived Settings
// =============================================================================

// AssignerConfig converts to the assigner configuration.
func (c *Config) AssignerConfig() priority.Config {
	return priority.Config{
		MaxPriority:   c.Priority.MaxPriority,
		MaxNameLength: c.Priority.MaxNameLength,
		Hash:          priority.HashFamily(strings.ToLower(c.Priority.Hash)),
	}
}

// PlanParams converts to plan builder parameters.
func (c *Config) PlanParams() deployment.PlanParams {
	return deployment.PlanParams{
		NamePrefix: c.Plan.NamePrefix,
		OriginHeader: routing.OriginHeader{
			Name:  c.Plan.OriginHeaderName,
			Value: c.Plan.OriginHeaderValue,
		},
		ContainerPort: c.Plan.ContainerPort,
		CPU:           c.Plan.CPU,
		MemoryMiB:     c.Plan.MemoryMiB,
		DesiredCount:  c.Plan.DesiredCount,
		ImageTag:      c.Plan.ImageTag,
		MaxApps:       c.Plan.MaxApps,
		SecretName:    c.Plan.SecretName,
	}
}

// AWSSettings converts to applier settings.
func (c *Config) AWSSettings() coreprovider.AWSSettings {
	return coreprovider.AWSSettings{
		Region:      c.AWS.Region,
		ListenerARN: c.AWS.ListenerARN,
		VPCID:       c.AWS.VPCID,
		VPCName:     c.AWS.VPCName,
		Concurrency: c.AWS.Concurrency,
		Credentials: c.awsCredentials(),
		MaxPriority: c.Priority.MaxPriority,
	}
}

// LLMConfig converts to model invoker configuration.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Backend:     c.Demo.Backend,
		Model:       c.Demo.Model,
		MaxTokens:   c.Demo.MaxTokens,
		Temperature: c.Demo.Temperature,
		Region:      c.AWS.Region,
		Credentials: c.awsCredentials(),
		APIKey:      c.Demo.APIKey,
	}
}

// DeployedEndpoints converts to plan output endpoints.
func (c *Config) DeployedEndpoints() deployment.Endpoints {
	return deployment.Endpoints{
		DistributionDomain: c.Endpoints.DistributionDomain,
		BucketName:         c.Endpoints.BucketName,
		CloneURLPrefix:     c.Endpoints.CloneURLPrefix,
		UserPoolID:         c.Endpoints.UserPoolID,
	}
}

func (c *Config) awsCredentials() coreprovider.AWSCredentials {
	return coreprovider.AWSCredentials{
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		SessionToken:    c.AWS.SessionToken,
	}
}

// Validate checks settings every command depends on.
func (c *Config) Validate() error {
	if err := c.AssignerConfig().Validate(); err != nil {
		return err
	}
	kind, err := coreprovider.NormalizeKind(c.Apply.Provider)
	if err != nil {
		return err
	}
	if kind == coreprovider.KindAWS {
		if err := coreprovider.ValidateMaxPriority(c.Priority.MaxPriority); err != nil {
			return err
		}
	}
	return coreprovider.ValidateAWSCredentials(c.awsCredentials())
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	defaults := deployment.DefaultPlanParams()
	prio := priority.DefaultConfig()

	// Set defaults
	v.SetDefault("apps", []string{})
	v.SetDefault("priority.max_priority", prio.MaxPriority)
	v.SetDefault("priority.max_name_length", prio.MaxNameLength)
	v.SetDefault("priority.hash", string(prio.Hash))

	v.SetDefault("plan.name_prefix", defaults.NamePrefix)
	v.SetDefault("plan.origin_header_name", defaults.OriginHeader.Name)
	v.SetDefault("plan.origin_header_value", "")
	v.SetDefault("plan.container_port", defaults.ContainerPort)
	v.SetDefault("plan.cpu", defaults.CPU)
	v.SetDefault("plan.memory_mib", defaults.MemoryMiB)
	v.SetDefault("plan.desired_count", defaults.DesiredCount)
	v.SetDefault("plan.image_tag", defaults.ImageTag)
	v.SetDefault("plan.max_apps", defaults.MaxApps)
	v.SetDefault("plan.secret_name", defaults.SecretName)

	v.SetDefault("apply.provider", coreprovider.KindDryRun)

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("aws.session_token", "")
	v.SetDefault("aws.listener_arn", "")
	v.SetDefault("aws.vpc_id", "")
	v.SetDefault("aws.vpc_name", defaults.NamePrefix+"VPC")
	v.SetDefault("aws.concurrency", coreprovider.DefaultConcurrency)

	v.SetDefault("endpoints.distribution_domain", "")
	v.SetDefault("endpoints.bucket_name", "")
	v.SetDefault("endpoints.clone_url_prefix", "")
	v.SetDefault("endpoints.user_pool_id", "")

	v.SetDefault("database.dsn", "./data/appfleet.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("demo.app", "")
	v.SetDefault("demo.host", "0.0.0.0")
	v.SetDefault("demo.port", defaults.ContainerPort)
	v.SetDefault("demo.base_path", "")
	v.SetDefault("demo.backend", llm.BackendBedrock)
	v.SetDefault("demo.model", "")
	v.SetDefault("demo.api_key", "")
	v.SetDefault("demo.max_tokens", llm.DefaultMaxTokens)
	v.SetDefault("demo.temperature", llm.DefaultTemperature)
	v.SetDefault("demo.invoke_timeout", "60s")
	v.SetDefault("demo.read_timeout", "30s")
	v.SetDefault("demo.write_timeout", "90s")
	v.SetDefault("demo.shutdown_timeout", "10s")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("APPFLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The deployed container learns its prefix from the service environment.
	if err := v.BindEnv("demo.base_path", "APPFLEET_DEMO_BASE_PATH", deployment.BasePathEnv); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
// Logs go to w so command output on stdout stays machine-readable.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
