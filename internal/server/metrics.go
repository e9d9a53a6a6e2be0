package server

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry    *prometheus.Registry
	conversions *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	inBytes     prometheus.Histogram
	outBytes    prometheus.Histogram
	duration    *prometheus.HistogramVec
}

func newMetrics() *metrics {
	sizeBuckets := prometheus.ExponentialBuckets(1<<10, 4, 8) // 1 KB .. 16 MB

	m := &metrics{
		registry: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixconv_conversions_total",
			Help: "Conversions by target format and outcome",
		}, []string{"target", "result"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixconv_fallbacks_total",
			Help: "Conversions that returned the source because the output was larger",
		}, []string{"target"}),
		inBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixconv_input_bytes",
			Help:    "Size of source images",
			Buckets: sizeBuckets,
		}),
		outBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixconv_output_bytes",
			Help:    "Size of returned images",
			Buckets: sizeBuckets,
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixconv_conversion_duration_seconds",
			Help:    "Wall time of a conversion",
			Buckets: prometheus.DefBuckets,
		}, []string{"target"}),
	}

	m.registry.MustRegister(
		m.conversions,
		m.fallbacks,
		m.inBytes,
		m.outBytes,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
