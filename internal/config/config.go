package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envHome            = "CS_HOME"
	envOptionsFile     = "CS_OPTIONS_FILE"
	envStatePath       = "CS_STATE_PATH"
	envStateBackend    = "CS_STATE_BACKEND"
	envServiceBackend  = "CS_SERVICE_BACKEND"
	envServiceName     = "CS_SERVICE_NAME"
	envDockerHost      = "CS_DOCKER_HOST"
	envResourceDir     = "CS_RESOURCE_DIR"
	envResourceURL     = "CS_RESOURCE_URL"
	envPollInterval    = "CS_POLL_INTERVAL"
	envProbeTimeout    = "CS_PROBE_TIMEOUT"
	envFirewall        = "CS_FIREWALL"
	envHealthPort      = "CS_HEALTH_PORT"
	envMetricsPort     = "CS_METRICS_PORT"
	envSlackWebhookURL = "CS_SLACK_WEBHOOK_URL"
	envWebhookURL      = "CS_WEBHOOK_URL"
	envWebhookTemplate = "CS_WEBHOOK_TEMPLATE"
	envDryRun          = "CS_DRY_RUN"
	envLogLevel        = "CS_LOG_LEVEL"
)

const (
	defaultHome           = "/opt/minecraft"
	defaultOptionsFile    = "/etc/craft-sentinel/options.yaml"
	defaultStatePath      = "/var/lib/craft-sentinel/state.json"
	defaultServiceName    = "minecraft"
	defaultResourceDir    = "/var/lib/craft-sentinel/resources"
	defaultPollInterval   = 5 * time.Minute
	defaultProbeTimeout   = 5 * time.Second
	defaultLogLevel       = "info"
	defaultStateBackend   = StateBackendFile
	defaultServiceBackend = ServiceBackendSystemd
	defaultFirewall       = FirewallNone
)

// Backend selectors.
const (
	StateBackendFile   = "file"
	StateBackendSQLite = "sqlite"

	ServiceBackendSystemd = "systemd"
	ServiceBackendDocker  = "docker"

	FirewallNone = "none"
	FirewallUFW  = "ufw"
)

// Config describes runtime configuration loaded from the environment.
type Config struct {
	Home            string
	OptionsFile     string
	StatePath       string
	StateBackend    string
	ServiceBackend  string
	ServiceName     string
	DockerHost      string
	ResourceDir     string
	ResourceURL     string
	PollInterval    time.Duration
	ProbeTimeout    time.Duration
	Firewall        string
	HealthPort      int
	MetricsPort     int
	SlackWebhookURL string
	WebhookURL      string
	WebhookTemplate string
	DryRun          bool
	LogLevel        string
}

// Load reads configuration from environment variables and a local .env file if present.
// Existing environment variables take precedence over values in .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Home:           defaultHome,
		OptionsFile:    defaultOptionsFile,
		StatePath:      defaultStatePath,
		StateBackend:   defaultStateBackend,
		ServiceBackend: defaultServiceBackend,
		ServiceName:    defaultServiceName,
		ResourceDir:    defaultResourceDir,
		PollInterval:   defaultPollInterval,
		ProbeTimeout:   defaultProbeTimeout,
		Firewall:       defaultFirewall,
		LogLevel:       defaultLogLevel,
	}

	stringVars := []struct {
		key    string
		target *string
	}{
		{envHome, &cfg.Home},
		{envOptionsFile, &cfg.OptionsFile},
		{envStatePath, &cfg.StatePath},
		{envServiceName, &cfg.ServiceName},
		{envDockerHost, &cfg.DockerHost},
		{envResourceDir, &cfg.ResourceDir},
		{envResourceURL, &cfg.ResourceURL},
		{envSlackWebhookURL, &cfg.SlackWebhookURL},
		{envWebhookURL, &cfg.WebhookURL},
		{envWebhookTemplate, &cfg.WebhookTemplate},
		{envLogLevel, &cfg.LogLevel},
	}
	for _, v := range stringVars {
		if value, ok := lookupTrimmed(v.key); ok && value != "" {
			*v.target = value
		}
	}

	if value, ok := lookupTrimmed(envStateBackend); ok && value != "" {
		cfg.StateBackend = strings.ToLower(value)
	}
	if value, ok := lookupTrimmed(envServiceBackend); ok && value != "" {
		cfg.ServiceBackend = strings.ToLower(value)
	}
	if value, ok := lookupTrimmed(envFirewall); ok && value != "" {
		cfg.Firewall = strings.ToLower(value)
	}

	var err error
	if cfg.PollInterval, err = parsePositiveDuration(envPollInterval, cfg.PollInterval); err != nil {
		return Config{}, err
	}
	if cfg.ProbeTimeout, err = parsePositiveDuration(envProbeTimeout, cfg.ProbeTimeout); err != nil {
		return Config{}, err
	}
	if cfg.HealthPort, err = parsePort(envHealthPort); err != nil {
		return Config{}, err
	}
	if cfg.MetricsPort, err = parsePort(envMetricsPort); err != nil {
		return Config{}, err
	}

	if value, ok := lookupTrimmed(envDryRun); ok && value != "" {
		dryRun, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envDryRun, err)
		}
		cfg.DryRun = dryRun
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.StateBackend {
	case StateBackendFile, StateBackendSQLite:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", envStateBackend, StateBackendFile, StateBackendSQLite, c.StateBackend)
	}
	switch c.ServiceBackend {
	case ServiceBackendSystemd, ServiceBackendDocker:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", envServiceBackend, ServiceBackendSystemd, ServiceBackendDocker, c.ServiceBackend)
	}
	switch c.Firewall {
	case FirewallNone, FirewallUFW:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", envFirewall, FirewallNone, FirewallUFW, c.Firewall)
	}

	if c.ResourceURL != "" {
		if err := validateURL(c.ResourceURL, envResourceURL); err != nil {
			return err
		}
	}
	if c.SlackWebhookURL != "" {
		if err := validateURL(c.SlackWebhookURL, envSlackWebhookURL); err != nil {
			return err
		}
	}
	if c.WebhookURL != "" {
		if err := validateURL(c.WebhookURL, envWebhookURL); err != nil {
			return err
		}
	}
	if c.WebhookTemplate != "" && c.WebhookURL == "" {
		return fmt.Errorf("%s requires %s", envWebhookTemplate, envWebhookURL)
	}

	return nil
}

func parsePositiveDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero", key)
	}
	return d, nil
}

func parsePort(key string) (int, error) {
	value, ok := lookupTrimmed(key)
	if !ok || value == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("%s must be between 0 and 65535", key)
	}
	return port, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
