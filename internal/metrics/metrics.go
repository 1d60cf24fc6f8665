package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	TokenRefreshes *prometheus.CounterVec // result label: ok|skipped|error

	Fetches       *prometheus.CounterVec // result label: ok|error|stale
	FetchDuration prometheus.Histogram

	Riders prometheus.Gauge
	Points prometheus.Gauge

	ViewportFits *prometheus.CounterVec // action label: animate|fit
	MapClients   prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	PollInterval prometheus.Gauge // seconds
}

func NewCollector(pollInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_token_refreshes_total",
			Help: "Access credential refresh attempts by result.",
		}, []string{"result"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_fetches_total",
			Help: "Tracking record fetches by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_fetch_duration_seconds",
			Help:    "Duration of tracking record fetches.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		Riders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_riders",
			Help: "Number of riders in the current snapshot.",
		}),
		Points: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_points",
			Help: "Number of stop and vehicle points in the current snapshot.",
		}),
		ViewportFits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_viewport_fits_total",
			Help: "Camera commands sent to the map by action.",
		}, []string{"action"}),
		MapClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_map_clients",
			Help: "Number of connected map clients.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		PollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_poll_interval_seconds",
			Help: "Poll interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.TokenRefreshes,
		c.Fetches, c.FetchDuration,
		c.Riders, c.Points,
		c.ViewportFits, c.MapClients,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.PollInterval,
	)

	c.PollInterval.Set(pollInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}

// Adapter methods so the collector can be handed to components as their metrics interface.

func (c *Collector) TokenRefreshInc(result string) { c.TokenRefreshes.WithLabelValues(result).Inc() }

func (c *Collector) FetchObserve(result string, d time.Duration) {
	c.Fetches.WithLabelValues(result).Inc()
	if result != "stale" {
		c.FetchDuration.Observe(d.Seconds())
	}
}

func (c *Collector) SnapshotSet(riders, points int) {
	c.Riders.Set(float64(riders))
	c.Points.Set(float64(points))
}

func (c *Collector) ViewportFitInc(action string) { c.ViewportFits.WithLabelValues(action).Inc() }

func (c *Collector) MapClientsSet(n int) { c.MapClients.Set(float64(n)) }

func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }

func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
