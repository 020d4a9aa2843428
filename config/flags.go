package config

import (
	"strings"

	"github.com/spf13/pflag"
)

var envReplacer = strings.NewReplacer(".", "_")

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"environment":                "environment",
	"admin-socket":               KeyAdminSocketPath,
	"admin-socket-mode":          "admin_socket.mode",
	"admin-socket-write-timeout": "admin_socket.write_timeout",
	"admin-socket-format":        "admin_socket.format",
	"log-level":                  "logging.level",
	"log-format":                 "logging.format",
	"log-template":               "logging.template",
	"log-text-colors":            "logging.text_colors",
	"publish-interval":           "publish.interval",
	"prometheus-listen":          "prometheus.listen",
	"prometheus-url":             "prometheus.url",
	"prometheus-prefix":          "prometheus.prefix",
	"victoria-listen":            "victoria.listen",
	"victoria-url":               "victoria.url",
	"victoria-prefix":            "victoria.prefix",
	"datadog-host":               "datadog.host",
	"datadog-port":               "datadog.port",
	"datadog-prefix":             "datadog.prefix",
	"datadog-tags":               "datadog.tags",
	"newrelic-api-key":           "newrelic.api_key",
	"newrelic-endpoint":          "newrelic.endpoint",
	"newrelic-prefix":            "newrelic.prefix",
	"newrelic-attributes":        "newrelic.attributes",
}

// AddFlags registers every flag New knows how to bind.
func AddFlags(flags *pflag.FlagSet) {

	flags.String("environment", "", "Environment reported to datadog and newrelic")

	flags.String("admin-socket", "", "Unix socket path counters are exported on, empty disables exporting")
	flags.String("admin-socket-mode", "0600", "Admin socket file mode")
	flags.Duration("admin-socket-write-timeout", DefaultWriteTimeout, "Admin socket write timeout per client, 0 disables it")
	flags.Int("admin-socket-format", 1, "Admin socket snapshot format: 1 (trailing comma), 2 (strict JSON)")

	flags.String("log-level", "info", "Log level: info, warn, error, debug, panic")
	flags.String("log-format", "text", "Log format: json, text, template")
	flags.String("log-template", "{{.file}} {{.msg}}", "Log template")
	flags.Bool("log-text-colors", false, "Log text colors")

	flags.Duration("publish-interval", DefaultPublishInterval, "Interval counters are pushed to datadog and newrelic")

	flags.String("prometheus-listen", "", "Prometheus listen address, empty disables it")
	flags.String("prometheus-url", "/metrics", "Prometheus endpoint url")
	flags.String("prometheus-prefix", "proflog", "Prometheus prefix")

	flags.String("victoria-listen", "", "VictoriaMetrics listen address, empty disables it")
	flags.String("victoria-url", "/metrics", "VictoriaMetrics endpoint url")
	flags.String("victoria-prefix", "proflog", "VictoriaMetrics prefix")

	flags.String("datadog-host", "", "DataDog statsd host, empty disables it")
	flags.Int("datadog-port", 8125, "DataDog statsd port")
	flags.String("datadog-prefix", "proflog", "DataDog prefix")
	flags.String("datadog-tags", "", "DataDog tags, comma separated list of name=value")

	flags.String("newrelic-api-key", "", "NewRelic API key")
	flags.String("newrelic-endpoint", "", "NewRelic metrics endpoint, empty disables it")
	flags.String("newrelic-prefix", "proflog", "NewRelic prefix")
	flags.String("newrelic-attributes", "", "NewRelic attributes, comma separated list of name=value")
}
