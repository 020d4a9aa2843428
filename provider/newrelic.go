package provider

import (
	"context"
	"strings"
	"time"

	"github.com/devopsext/proflog/common"
	"github.com/devopsext/utils"
	telemetry "github.com/newrelic/newrelic-telemetry-sdk-go/telemetry"
)

type NewRelicOptions struct {
	ApiKey      string
	ServiceName string
	Environment string
	Version     string
	Attributes  string
	Timeout     int
	Debug       bool
}

type NewRelicMeterOptions struct {
	NewRelicOptions
	Endpoint string
	Prefix   string
}

// NewRelicMeter records every sample as a telemetry gauge and harvests on
// each Publish. Tracked slots are sent as <name>.count and <name>.sum.
type NewRelicMeter struct {
	options   NewRelicMeterOptions
	logger    common.Logger
	harvester *telemetry.Harvester
}

func (nrm *NewRelicMeter) name(parts ...string) string {

	var names []string
	if !utils.IsEmpty(nrm.options.Prefix) {
		names = append(names, nrm.options.Prefix)
	}
	names = append(names, parts...)
	return strings.Join(names, ".")
}

func (nrm *NewRelicMeter) Publish(samples []common.Sample) {

	now := time.Now()
	for _, s := range samples {

		attributes := map[string]interface{}{"set": s.Set}
		if !s.Tracked {
			nrm.harvester.RecordMetric(telemetry.Gauge{
				Timestamp:  now,
				Name:       nrm.name(s.Name),
				Value:      s.Value(),
				Attributes: attributes,
			})
			continue
		}

		nrm.harvester.RecordMetric(telemetry.Gauge{
			Timestamp:  now,
			Name:       nrm.name(s.Name, "count"),
			Value:      float64(s.Count),
			Attributes: attributes,
		})
		nrm.harvester.RecordMetric(telemetry.Gauge{
			Timestamp:  now,
			Name:       nrm.name(s.Name, "sum"),
			Value:      s.Value(),
			Attributes: attributes,
		})
	}
	nrm.harvester.HarvestNow(context.Background())
}

func (nrm *NewRelicMeter) Stop() {
	nrm.harvester.HarvestNow(context.Background())
}

func NewNewRelicMeter(options NewRelicMeterOptions, logger common.Logger, stdout *Stdout) *NewRelicMeter {

	if logger == nil {
		logger = stdout
	}

	if utils.IsEmpty(options.Endpoint) {
		stdout.Debug("NewRelic meter is disabled.")
		return nil
	}

	attributes := make(map[string]interface{})
	for k, v := range common.GetKeyValues(options.Attributes) {
		attributes[k] = v
	}
	if !utils.IsEmpty(options.ServiceName) {
		attributes["service.name"] = options.ServiceName
	}
	if !utils.IsEmpty(options.Environment) {
		attributes["environment"] = options.Environment
	}
	if !utils.IsEmpty(options.Version) {
		attributes["service.version"] = options.Version
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 5
	}

	var cfgs []func(*telemetry.Config)
	cfgs = append(cfgs,
		telemetry.ConfigAPIKey(options.ApiKey),
		telemetry.ConfigMetricsURLOverride(options.Endpoint),
		telemetry.ConfigCommonAttributes(attributes),
		// harvests are driven by Publish
		telemetry.ConfigHarvestPeriod(0),
		func(cfg *telemetry.Config) {
			cfg.Client = common.MakeHttpClient(timeout)
		},
	)

	if options.Debug {
		cfgs = append(cfgs,
			telemetry.ConfigBasicErrorLogger(stdout.Writer()),
			telemetry.ConfigBasicDebugLogger(stdout.Writer()),
		)
	}

	harvester, err := telemetry.NewHarvester(cfgs...)
	if err != nil {
		logger.Error(err)
		return nil
	}

	logger.Info("NewRelic meter is up...")

	return &NewRelicMeter{
		options:   options,
		logger:    logger,
		harvester: harvester,
	}
}
