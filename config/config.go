package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// KeyAdminSocketPath is the socket the counters exporter listens on. Empty disables exporting.
	KeyAdminSocketPath = "admin_socket.path"

	DefaultWriteTimeout    = 5 * time.Second
	DefaultPublishInterval = 10 * time.Second
)

// Config holds all configuration for proflog.
type Config struct {
	// Environment is reported to the push backends as dd.env and environment.
	Environment string            `mapstructure:"environment"`
	AdminSocket AdminSocketConfig `mapstructure:"admin_socket"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Publish     PublishConfig     `mapstructure:"publish"`
	Prometheus  PrometheusConfig  `mapstructure:"prometheus"`
	Victoria    VictoriaConfig    `mapstructure:"victoria"`
	DataDog     DataDogConfig     `mapstructure:"datadog"`
	NewRelic    NewRelicConfig    `mapstructure:"newrelic"`
}

// AdminSocketConfig holds the counters exporter settings.
type AdminSocketConfig struct {
	Path         string        `mapstructure:"path"`
	Mode         string        `mapstructure:"mode"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Format       int           `mapstructure:"format"`
}

// FileMode parses Mode as an octal permission string; empty means 0.
func (c AdminSocketConfig) FileMode() (os.FileMode, error) {
	if c.Mode == "" {
		return 0, nil
	}
	var mode uint32
	if _, err := fmt.Sscanf(c.Mode, "%o", &mode); err != nil {
		return 0, fmt.Errorf("admin_socket.mode %q is not an octal mode: %w", c.Mode, err)
	}
	if mode > 0777 {
		return 0, fmt.Errorf("admin_socket.mode %q is out of range", c.Mode)
	}
	return os.FileMode(mode), nil
}

// LoggingConfig holds stdout logger settings.
type LoggingConfig struct {
	Level           string `mapstructure:"level"`
	Format          string `mapstructure:"format"`
	Template        string `mapstructure:"template"`
	TimestampFormat string `mapstructure:"timestamp_format"`
	TextColors      bool   `mapstructure:"text_colors"`
}

// PublishConfig controls how often push publishers receive samples.
type PublishConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// PrometheusConfig holds the client_golang exposition endpoint. Empty Listen disables it.
type PrometheusConfig struct {
	Listen string `mapstructure:"listen"`
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

// VictoriaConfig holds the VictoriaMetrics exposition endpoint. Empty Listen disables it.
type VictoriaConfig struct {
	Listen string `mapstructure:"listen"`
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

// DataDogConfig holds the statsd agent settings. Empty Host disables it.
type DataDogConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	Prefix string `mapstructure:"prefix"`
	Tags   string `mapstructure:"tags"`
}

// NewRelicConfig holds the telemetry SDK settings. Empty Endpoint disables it.
type NewRelicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	Prefix     string `mapstructure:"prefix"`
	Attributes string `mapstructure:"attributes"`
	Timeout    int    `mapstructure:"timeout"`
}

// String returns a safe representation of NewRelicConfig with the API key masked.
func (c NewRelicConfig) String() string {
	return fmt.Sprintf("NewRelicConfig{APIKey:%s, Endpoint:%s, Prefix:%s}", maskAPIKey(c.APIKey), c.Endpoint, c.Prefix)
}

func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

func setDefaults(v *viper.Viper) {

	v.SetDefault("environment", "")

	v.SetDefault(KeyAdminSocketPath, "")
	v.SetDefault("admin_socket.mode", "0600")
	v.SetDefault("admin_socket.write_timeout", DefaultWriteTimeout)
	v.SetDefault("admin_socket.format", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.template", "{{.file}} {{.msg}}")
	v.SetDefault("logging.timestamp_format", time.RFC3339Nano)
	v.SetDefault("logging.text_colors", false)

	v.SetDefault("publish.interval", DefaultPublishInterval)

	v.SetDefault("prometheus.listen", "")
	v.SetDefault("prometheus.url", "/metrics")
	v.SetDefault("prometheus.prefix", "proflog")

	v.SetDefault("victoria.listen", "")
	v.SetDefault("victoria.url", "/metrics")
	v.SetDefault("victoria.prefix", "proflog")

	v.SetDefault("datadog.host", "")
	v.SetDefault("datadog.port", 8125)
	v.SetDefault("datadog.prefix", "proflog")
	v.SetDefault("datadog.tags", "")

	v.SetDefault("newrelic.api_key", "")
	v.SetDefault("newrelic.endpoint", "")
	v.SetDefault("newrelic.prefix", "proflog")
	v.SetDefault("newrelic.attributes", "")
	v.SetDefault("newrelic.timeout", 5)
}

// New builds the viper instance used by Load and Watcher. file may be empty,
// in which case config.yaml is searched in ~/.proflog and the working directory.
// Flags, when given, are bound by their names with "-" read as ".".
func New(file string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.proflog")
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PROFLOG")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if flags != nil {
		var err error
		flags.VisitAll(func(f *pflag.Flag) {
			if err != nil {
				return
			}
			if key, ok := flagKeys[f.Name]; ok {
				err = v.BindPFlag(key, f)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, defaults + env vars apply
	}
	return v, nil
}

// Load reads configuration from file, environment variables and flags.
func Load(file string, flags *pflag.FlagSet) (*viper.Viper, *Config, error) {
	v, err := New(file, flags)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}

// Decode unmarshals and validates the current state of v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that configuration fields are consistent.
func (c *Config) Validate() error {
	if _, err := c.AdminSocket.FileMode(); err != nil {
		return err
	}
	if c.AdminSocket.WriteTimeout < 0 {
		return fmt.Errorf("admin_socket.write_timeout must be >= 0")
	}
	if c.AdminSocket.Format != 1 && c.AdminSocket.Format != 2 {
		return fmt.Errorf("admin_socket.format must be 1 or 2, got %d", c.AdminSocket.Format)
	}
	if c.Publish.Interval < 0 {
		return fmt.Errorf("publish.interval must be >= 0")
	}
	if c.DataDog.Host != "" && (c.DataDog.Port <= 0 || c.DataDog.Port > 65535) {
		return fmt.Errorf("datadog.port %d is out of range", c.DataDog.Port)
	}
	if c.NewRelic.Endpoint != "" && c.NewRelic.APIKey == "" {
		return fmt.Errorf("newrelic.api_key must be set when newrelic.endpoint is set")
	}
	return nil
}
