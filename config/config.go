package config

import (
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
)

const (
	DefaultConnectionTimeout   = 3 * time.Second
	DefaultHealthCheckInterval = 60 * time.Second
	DefaultRetryCount          = 3
	DefaultRetryInterval       = 100 * time.Millisecond
)

// EnvPrefix namespaces environment overrides, e.g. TYPESENSE_API_KEY.
const EnvPrefix = "TYPESENSE"

type NodeConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Protocol string `mapstructure:"protocol"`
	Path     string `mapstructure:"path"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
}

type RetryConfig struct {
	Count    int    `mapstructure:"count"`
	Interval string `mapstructure:"interval"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// TracingConfig enables span export over OTLP/HTTP when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type Config struct {
	Environment       string            `mapstructure:"environment"`
	APIKey            string            `mapstructure:"api_key"`
	Nodes             []NodeConfig      `mapstructure:"nodes"`
	NearestNode       *NodeConfig       `mapstructure:"nearest_node"`
	ConnectionTimeout string            `mapstructure:"connection_timeout"`
	HealthCheck       HealthCheckConfig `mapstructure:"health_check"`
	Retry             RetryConfig       `mapstructure:"retry"`
	Verify            *bool             `mapstructure:"verify"`
	Logging           LoggingConfig     `mapstructure:"logging"`
	Metrics           MetricsConfig     `mapstructure:"metrics"`
	Tracing           TracingConfig     `mapstructure:"tracing"`
}

// Load reads config.yaml from ./config or the working directory, falling back
// to defaults and TYPESENSE_* environment variables when no file exists.
func Load() (*Config, error) {
	v := newViper()
	if err := readConfig(v, ""); err != nil {
		return nil, err
	}

	return decode(v)
}

// LoadFile reads the configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	if err := readConfig(v, path); err != nil {
		return nil, err
	}

	return decode(v)
}

// Flag names understood by LoadWithFlags.
const (
	FlagConfig      = "config"
	FlagMetricsAddr = "metrics-addr"
	FlagLogLevel    = "log-level"
)

var flagKeys = map[string]string{
	FlagMetricsAddr: "metrics.address",
	FlagLogLevel:    "logging.level",
}

// LoadWithFlags layers command line flags over the config file, the
// environment and the defaults. The file comes from the --config flag when
// set and is searched for as in Load otherwise. Flags left unset do not
// override anything.
func LoadWithFlags(flags *pflag.FlagSet) (*Config, error) {
	v := newViper()

	for name, key := range flagKeys {
		if flag := flags.Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, err
			}
		}
	}

	path := ""
	if flag := flags.Lookup(FlagConfig); flag != nil {
		path = flag.Value.String()
	}

	if err := readConfig(v, path); err != nil {
		return nil, err
	}

	return decode(v)
}

// FromViper decodes and validates an already populated viper instance, so
// callers can layer their own sources on top of files.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	return decode(v)
}

// readConfig reads path, or searches for config.yaml when path is empty. A
// missing file is only an error when path was given.
func readConfig(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			slog.Error("failed to read config file",
				slog.String("file", path),
				slog.String("error", err.Error()))
			return err
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return err
		}
		slog.Debug("config file not found, using defaults and environment variables")
		return nil
	}

	slog.Debug("loaded config file", slog.String("file", v.ConfigFileUsed()))
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDev)
	v.SetDefault("api_key", "")
	v.SetDefault("connection_timeout", DefaultConnectionTimeout.String())
	v.SetDefault("health_check.interval", DefaultHealthCheckInterval.String())
	v.SetDefault("retry.count", DefaultRetryCount)
	v.SetDefault("retry.interval", DefaultRetryInterval.String())
	v.SetDefault("verify", true)
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("metrics.address", "")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_ratio", 1.0)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// ConnectionTimeoutDuration bounds a single attempt against one node.
func (c *Config) ConnectionTimeoutDuration() time.Duration {
	return parseDuration(c.ConnectionTimeout, DefaultConnectionTimeout)
}

// VerifyTLS reports whether node certificates are checked. An unset Verify
// means yes.
func (c *Config) VerifyTLS() bool {
	return c.Verify == nil || *c.Verify
}

// HealthCheckInterval is how long an unhealthy node is skipped before it is
// offered traffic again.
func (c *Config) HealthCheckInterval() time.Duration {
	return parseDuration(c.HealthCheck.Interval, DefaultHealthCheckInterval)
}

func (c *Config) RetryInterval() time.Duration {
	return parseDuration(c.Retry.Interval, DefaultRetryInterval)
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.Nodes,
			validation.Required,
			validation.Length(1, 0),
		),
		validation.Field(&c.NearestNode),
		validation.Field(&c.ConnectionTimeout,
			validation.Required,
			validation.By(validateDuration),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
				)
			}),
		),
		validation.Field(&c.Retry,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RetryConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RetryConfig")
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.Count, validation.Min(0)),
					validation.Field(&rc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.Address, validation.By(validateHostPort)),
				)
			}),
		),
		validation.Field(&c.Tracing,
			validation.By(func(value interface{}) error {
				tc, ok := value.(TracingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a TracingConfig")
				}
				return validation.ValidateStruct(&tc,
					validation.Field(&tc.Endpoint, validation.By(validateHostPort)),
					validation.Field(&tc.SampleRatio, validation.Min(0.0), validation.Max(1.0)),
				)
			}),
		),
	)
}

// Validate is picked up by ozzo for every entry of Nodes and for NearestNode.
func (n NodeConfig) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Host, validation.Required, is.Host),
		validation.Field(&n.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&n.Protocol,
			validation.Required,
			validation.In(ProtocolHTTP, ProtocolHTTPS),
		),
		validation.Field(&n.Path, validation.By(validatePathPrefix)),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if addr == "" {
		return nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d < 0 {
		return validation.NewError("validation_negative_duration", "must not be negative")
	}

	return nil
}

// validatePositiveDuration is validateDuration without zero, for intervals
// that drive a ticker.
func validatePositiveDuration(value interface{}) error {
	if err := validateDuration(value); err != nil {
		return err
	}

	if d, _ := time.ParseDuration(value.(string)); d == 0 {
		return validation.NewError("validation_zero_duration", "must be positive")
	}

	return nil
}

func validatePathPrefix(value interface{}) error {
	path, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if path != "" && !strings.HasPrefix(path, "/") {
		return validation.NewError("validation_invalid_path", "path must start with /")
	}

	return nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
