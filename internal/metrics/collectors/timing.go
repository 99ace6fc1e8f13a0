// Package collectors exposes published timing descriptors as Prometheus gauges.
package collectors

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smazurov/signalnode/internal/subdev"
	"github.com/smazurov/signalnode/internal/timing"
)

// Lister enumerates the subdevices to report.
type Lister interface {
	List() []*subdev.Subdevice
}

// TimingCollector reads a fresh snapshot of every subdevice on each scrape.
type TimingCollector struct {
	lister Lister

	signalPresent *prometheus.Desc
	clockLocked   *prometheus.Desc
	streaming     *prometheus.Desc
	activeWidth   *prometheus.Desc
	activeHeight  *prometheus.Desc
	framerate     *prometheus.Desc
	pixelClock    *prometheus.Desc
	bridgeClock   *prometheus.Desc
	csiActive     *prometheus.Desc
	sequence      *prometheus.Desc
}

// NewTimingCollector creates a collector over lister.
func NewTimingCollector(lister Lister) *TimingCollector {
	labels := []string{"subdevice", "variant"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("signalnode", "signal", name), help, labels, nil)
	}
	return &TimingCollector{
		lister:        lister,
		signalPresent: desc("present", "1 when a signal is present"),
		clockLocked:   desc("clock_locked", "1 when the pixel clock is locked"),
		streaming:     desc("streaming", "1 when the subdevice is streaming"),
		activeWidth:   desc("active_width_pixels", "Active width of the last detected signal"),
		activeHeight:  desc("active_height_lines", "Active height of the last detected signal"),
		framerate:     desc("framerate_hz", "Framerate of the last detected signal"),
		pixelClock:    desc("pixel_clock_hz", "Pixel clock of the last detected signal"),
		bridgeClock:   desc("bridge_clock_hz", "Bridge PLL output clock"),
		csiActive:     desc("csi_active", "1 when the bridge CSI-2 output is active"),
		sequence:      desc("sequence", "Sequence number of the published descriptor"),
	}
}

// Describe implements prometheus.Collector.
func (c *TimingCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.signalPresent
	ch <- c.clockLocked
	ch <- c.streaming
	ch <- c.activeWidth
	ch <- c.activeHeight
	ch <- c.framerate
	ch <- c.pixelClock
	ch <- c.bridgeClock
	ch <- c.csiActive
	ch <- c.sequence
}

// Collect implements prometheus.Collector.
func (c *TimingCollector) Collect(ch chan<- prometheus.Metric) {
	for _, sd := range c.lister.List() {
		d := sd.Snapshot()
		labels := []string{sd.Name(), string(sd.Variant())}
		gauge := func(desc *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, labels...)
		}

		gauge(c.signalPresent, boolFloat(d.SignalPresent))
		gauge(c.clockLocked, boolFloat(d.ClockLocked))
		gauge(c.streaming, boolFloat(sd.Streaming()))
		gauge(c.activeWidth, float64(d.ActiveWidth))
		gauge(c.activeHeight, float64(d.ActiveHeight))
		gauge(c.framerate, float64(d.Framerate))
		gauge(c.pixelClock, float64(d.PixelClockHz))
		if sd.Variant() == timing.VariantBridge {
			gauge(c.bridgeClock, float64(d.BridgeClockHz))
			gauge(c.csiActive, boolFloat(d.CSIActive))
		}
		ch <- prometheus.MustNewConstMetric(c.sequence, prometheus.GaugeValue, float64(d.Sequence), labels...)
	}
}

func boolFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
