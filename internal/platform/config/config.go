package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultAddress          = ":8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultInventoryBaseURL = "https://hans.tugastst.my.id"
	defaultLogisticsBaseURL = "https://jacob.tugastst.my.id"
	defaultRemoteTimeout    = 30 * time.Second
	defaultAMQPExchange     = "storefront.events"
	defaultLogLevel         = "info"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Remote   RemoteConfig
	Events   EventsConfig
	Features FeatureFlags
	LogLevel string
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RemoteConfig points at the inventory and logistics services.
type RemoteConfig struct {
	InventoryBaseURL string
	LogisticsBaseURL string
	// Timeout is applied at the transport level; workflows never add their own.
	Timeout time.Duration
}

// EventsConfig configures the optional RabbitMQ event publisher.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// Enabled reports whether an AMQP broker has been configured.
func (c EventsConfig) Enabled() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	UseStaticServices bool
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Address:      stringWithDefault(lookup, "STOREFRONT_HTTP_ADDR", defaultAddress),
			ReadTimeout:  durationWithDefault(lookup, "STOREFRONT_HTTP_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "STOREFRONT_HTTP_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "STOREFRONT_HTTP_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Remote: RemoteConfig{
			InventoryBaseURL: strings.TrimRight(stringWithDefault(lookup, "STOREFRONT_INVENTORY_BASE_URL", defaultInventoryBaseURL), "/"),
			LogisticsBaseURL: strings.TrimRight(stringWithDefault(lookup, "STOREFRONT_LOGISTICS_BASE_URL", defaultLogisticsBaseURL), "/"),
			Timeout:          durationWithDefault(lookup, "STOREFRONT_REMOTE_TIMEOUT", defaultRemoteTimeout),
		},
		Events: EventsConfig{
			AMQPURL:  stringWithDefault(lookup, "STOREFRONT_AMQP_URL", ""),
			Exchange: stringWithDefault(lookup, "STOREFRONT_AMQP_EXCHANGE", defaultAMQPExchange),
		},
		Features: FeatureFlags{
			UseStaticServices: boolWithDefault(lookup, "STOREFRONT_USE_STATIC_SERVICES", false),
		},
		LogLevel: strings.ToLower(stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel)),
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if strings.TrimSpace(cfg.Server.Address) == "" {
		missing = append(missing, "Server.Address")
	}
	if !cfg.Features.UseStaticServices {
		if !isHTTPURL(cfg.Remote.InventoryBaseURL) {
			missing = append(missing, "Remote.InventoryBaseURL")
		}
		if !isHTTPURL(cfg.Remote.LogisticsBaseURL) {
			missing = append(missing, "Remote.LogisticsBaseURL")
		}
	}
	if cfg.Remote.Timeout < 0 {
		missing = append(missing, "Remote.Timeout")
	}
	if cfg.Events.Enabled() && strings.TrimSpace(cfg.Events.Exchange) == "" {
		missing = append(missing, "Events.Exchange")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
