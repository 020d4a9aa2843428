package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/devopsext/proflog/common"
	"github.com/devopsext/utils"
)

type DataDogOptions struct {
	ServiceName string
	Environment string
	Version     string
	Tags        string
}

type DataDogMeterOptions struct {
	DataDogOptions
	AgentHost string
	AgentPort int
	Prefix    string
}

// statsdClient is the part of statsd.ClientInterface the meter uses.
type statsdClient interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Flush() error
	Close() error
}

// DataDogMeter pushes every sample as a statsd gauge. Tracked slots are sent
// as <name>.count and <name>.sum.
type DataDogMeter struct {
	options DataDogMeterOptions
	logger  common.Logger
	client  statsdClient
	tags    []string
}

func (ddm *DataDogMeter) getGlobalTags() []string {

	var tags []string

	m := common.GetKeyValues(ddm.options.Tags)
	for k, v := range m {
		tags = append(tags, fmt.Sprintf("%s:%s", k, v))
	}
	sort.Strings(tags)

	if !utils.IsEmpty(ddm.options.ServiceName) {
		tags = append(tags, fmt.Sprintf("dd.service:%s", ddm.options.ServiceName))
	}
	if !utils.IsEmpty(ddm.options.Version) {
		tags = append(tags, fmt.Sprintf("dd.version:%s", ddm.options.Version))
	}
	if !utils.IsEmpty(ddm.options.Environment) {
		tags = append(tags, fmt.Sprintf("dd.env:%s", ddm.options.Environment))
	}
	return tags
}

func (ddm *DataDogMeter) name(parts ...string) string {

	var names []string
	if !utils.IsEmpty(ddm.options.Prefix) {
		names = append(names, ddm.options.Prefix)
	}
	for _, p := range parts {
		if !utils.IsEmpty(p) {
			names = append(names, p)
		}
	}
	return strings.Join(names, ".")
}

func (ddm *DataDogMeter) gauge(name string, value float64, tags []string) {

	if err := ddm.client.Gauge(name, value, tags, 1); err != nil {
		ddm.logger.Error(err)
	}
}

func (ddm *DataDogMeter) Publish(samples []common.Sample) {

	for _, s := range samples {

		tags := append(append([]string{}, ddm.tags...), fmt.Sprintf("set:%s", s.Set))
		if !s.Tracked {
			ddm.gauge(ddm.name(s.Name), s.Value(), tags)
			continue
		}
		ddm.gauge(ddm.name(s.Name, "count"), float64(s.Count), tags)
		ddm.gauge(ddm.name(s.Name, "sum"), s.Value(), tags)
	}

	if err := ddm.client.Flush(); err != nil {
		ddm.logger.Error(err)
	}
}

func (ddm *DataDogMeter) Stop() {
	if err := ddm.client.Close(); err != nil {
		ddm.logger.Error(err)
	}
}

func newDataDogMeter(options DataDogMeterOptions, logger common.Logger, client statsdClient) *DataDogMeter {

	ddm := &DataDogMeter{
		options: options,
		logger:  logger,
		client:  client,
	}
	ddm.tags = ddm.getGlobalTags()
	return ddm
}

func NewDataDogMeter(options DataDogMeterOptions, logger common.Logger, stdout *Stdout) *DataDogMeter {

	if logger == nil {
		logger = stdout
	}

	if utils.IsEmpty(options.AgentHost) {
		stdout.Debug("DataDog meter is disabled.")
		return nil
	}

	client, err := statsd.New(fmt.Sprintf("%s:%d", options.AgentHost, options.AgentPort))
	if err != nil {
		logger.Error(err)
		return nil
	}

	logger.Info("DataDog meter is up...")

	return newDataDogMeter(options, logger, client)
}
