package host

import (
	"sync"

	"github.com/fritzlab/fritzbox_exporter/internal/plugin"
	"github.com/prometheus/client_golang/prometheus"
)

// Bridge re-exports dispatched measurement records as Prometheus metrics. It
// keeps the most recent record per (type, type instance) and emits each as a
// gauge named fritzbox_<type>. The mutex guards against concurrent scrapes;
// record dispatch itself is serial by host contract.
type Bridge struct {
	mu      sync.RWMutex
	records map[string]plugin.Record
	up      bool

	upDesc *prometheus.Desc
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{
		records: make(map[string]plugin.Record),
		upDesc: prometheus.NewDesc(
			"fritzbox_up",
			"Whether the last poll of the router produced any measurements (1 = yes).",
			nil, nil,
		),
	}
}

// Observe stores a record, replacing the previous value of the same
// measurement.
func (b *Bridge) Observe(rec plugin.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[rec.Type+"/"+rec.TypeInstance] = rec
}

// SetUp records whether the last poll cycle produced any measurements.
func (b *Bridge) SetUp(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.up = ok
}

// Describe implements prometheus.Collector. It sends nothing: the metric set
// depends on which services the router answers, so the bridge registers as
// an unchecked collector.
func (b *Bridge) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (b *Bridge) Collect(ch chan<- prometheus.Metric) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	upValue := 0.0
	if b.up {
		upValue = 1.0
	}
	ch <- prometheus.MustNewConstMetric(b.upDesc, prometheus.GaugeValue, upValue)

	for _, rec := range b.records {
		if len(rec.Values) == 0 {
			continue
		}

		desc := prometheus.NewDesc(
			metricName(rec.Type),
			"Measurement reported by the fritzbox plugin.",
			[]string{"host", "plugin_instance", "type_instance"}, nil,
		)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue,
			rec.Values[0].Float64(), rec.Host, rec.PluginInstance, rec.TypeInstance)
	}
}

func metricName(typ string) string {
	name := []byte("fritzbox_" + typ)
	for i, c := range name {
		valid := c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
		if !valid {
			name[i] = '_'
		}
	}
	return string(name)
}
