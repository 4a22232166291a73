package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"covidboard/internal/engine"
)

type datasetCollector struct {
	current func() *engine.ColumnStore

	rows      *prometheus.Desc
	countries *prometheus.Desc
	loaded    *prometheus.Desc
}

// NewDatasetCollector reports the size of whatever store current returns.
// current may return nil while the dataset is still loading.
func NewDatasetCollector(current func() *engine.ColumnStore) prometheus.Collector {
	return &datasetCollector{
		current: current,
		rows: prometheus.NewDesc(
			"covidboard_dataset_rows",
			"Number of records in the loaded dataset.",
			nil, nil,
		),
		countries: prometheus.NewDesc(
			"covidboard_dataset_countries",
			"Number of distinct countries in the loaded dataset.",
			nil, nil,
		),
		loaded: prometheus.NewDesc(
			"covidboard_dataset_loaded",
			"1 once the dataset is available, 0 while loading.",
			nil, nil,
		),
	}
}

// Describe implements Collector.
func (c *datasetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rows
	ch <- c.countries
	ch <- c.loaded
}

// Collect implements Collector.
func (c *datasetCollector) Collect(ch chan<- prometheus.Metric) {
	store := c.current()
	if store == nil {
		ch <- prometheus.MustNewConstMetric(c.loaded, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.loaded, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.rows, prometheus.GaugeValue, float64(store.Len()))
	ch <- prometheus.MustNewConstMetric(c.countries, prometheus.GaugeValue, float64(len(store.CountryDict)))
}
