package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/proxee/pkg/hostport"
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
	DefaultFileName = "proxee"
	EnvPrefix       = "PROXEE"
)

type ProxyConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	ListenPort    int    `mapstructure:"listen_port"`
	DialTimeout   string `mapstructure:"dial_timeout"`
	IdleTimeout   string `mapstructure:"idle_timeout"`
}

type LoadBalancingConfig struct {
	Method string `mapstructure:"method"`
}

type BackendServerConfig struct {
	Address string `mapstructure:"address"`
}

type MetricsConfig struct {
	ListenPort int      `mapstructure:"listen_port"`
	Route      string   `mapstructure:"route"`
	AllowedIPs []string `mapstructure:"allowed_ips"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
}

type Config struct {
	Proxy          ProxyConfig           `mapstructure:"proxy"`
	LoadBalancing  LoadBalancingConfig   `mapstructure:"load_balancing"`
	BackendServers []BackendServerConfig `mapstructure:"backend_servers"`
	Metrics        MetricsConfig         `mapstructure:"metrics"`
	Logging        LoggingConfig         `mapstructure:"logging"`
}

// Load reads the configuration from path, or from proxee.toml in the working
// directory or ./config when path is empty. A missing default file is not an
// error: defaults and PROXEE_* environment variables are used instead.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultFileName)
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, fmt.Errorf("read config: %w", err)
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("proxy.listen_address", "0.0.0.0")
	v.SetDefault("proxy.listen_port", 8000)
	v.SetDefault("proxy.dial_timeout", "5s")
	v.SetDefault("proxy.idle_timeout", "0s")
	v.SetDefault("load_balancing.method", "round_robin")
	v.SetDefault("metrics.listen_port", 8080)
	v.SetDefault("metrics.route", "/metrics")
	v.SetDefault("metrics.allowed_ips", []string{"127.0.0.1"})
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.environment", EnvDev)
}

// ListenAddr returns the proxy listen address in host:port form.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Proxy.ListenAddress, strconv.Itoa(c.Proxy.ListenPort))
}

// MetricsAddr returns the metrics endpoint listen address. The endpoint binds
// on all interfaces and relies on the allowlist for access control.
func (c *Config) MetricsAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.Metrics.ListenPort))
}

// BackendAddresses returns the configured backend addresses in order.
func (c *Config) BackendAddresses() []string {
	addrs := make([]string, 0, len(c.BackendServers))
	for _, b := range c.BackendServers {
		addrs = append(addrs, b.Address)
	}
	return addrs
}

// DialTimeout returns the parsed backend dial timeout. Validate guarantees it parses.
func (c *Config) DialTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Proxy.DialTimeout)
	return d
}

// IdleTimeout returns the parsed relay idle timeout; zero disables it.
func (c *Config) IdleTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Proxy.IdleTimeout)
	return d
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Proxy,
			validation.Required,
			validation.By(func(value interface{}) error {
				pc, ok := value.(ProxyConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ProxyConfig")
				}
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.ListenAddress,
						validation.Required,
						is.Host,
					),
					validation.Field(&pc.ListenPort,
						validation.Required,
						validation.Min(1),
						validation.Max(65535),
					),
					validation.Field(&pc.DialTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&pc.IdleTimeout,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.BackendServers,
			validation.Each(validation.By(validateBackendServer)),
		),
		validation.Field(&c.Metrics,
			validation.Required,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.ListenPort,
						validation.Required,
						validation.Min(1),
						validation.Max(65535),
					),
					validation.Field(&mc.Route,
						validation.Required,
						validation.By(validateRoute),
					),
					validation.Field(&mc.AllowedIPs,
						validation.Each(validation.By(validateAllowedIP)),
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
					validation.Field(&lc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
				)
			}),
		),
	)
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if durationStr == "" {
		return nil
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

func validateBackendServer(value interface{}) error {
	backend, ok := value.(BackendServerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BackendServerConfig")
	}

	if backend.Address == "" {
		return validation.NewError("validation_empty_address", "backend address cannot be empty")
	}

	return hostport.Dial.Validate(backend.Address)
}

func validateRoute(value interface{}) error {
	route, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if !strings.HasPrefix(route, "/") {
		return validation.NewError("validation_invalid_route", "route must start with /")
	}

	return nil
}

func validateAllowedIP(value interface{}) error {
	entry, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if net.ParseIP(entry) != nil {
		return nil
	}

	if _, _, err := net.ParseCIDR(entry); err == nil {
		return nil
	}

	return validation.NewError("validation_invalid_ip", "must be an IP address or CIDR")
}
