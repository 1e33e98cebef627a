// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediagit/mediagit/modules/mediagit/backend"
)

var (
	odbUniqueObjects = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mediagit_odb_unique_objects",
		Help: "Number of distinct objects held by the object database.",
	})
	odbBytesStored = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mediagit_odb_bytes_stored",
		Help: "Total compressed bytes the object database has written to storage.",
	})
	odbCacheHits = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mediagit_odb_cache_hits_total",
		Help: "Object cache hits observed at last collection.",
	})
	odbCacheMisses = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mediagit_odb_cache_misses_total",
		Help: "Object cache misses observed at last collection.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mediagit_http_requests_total",
		Help: "Push/Pull RPC requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediagit_http_request_duration_seconds",
		Help:    "Push/Pull RPC request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(
		odbUniqueObjects,
		odbBytesStored,
		odbCacheHits,
		odbCacheMisses,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// Collector polls a Database's OdbMetrics snapshot onto the registered
// gauges, grounded on the teacher pack's ticker-driven metrics collector
// (cuemby-warren's pkg/metrics.Collector) rather than recomputing on every
// scrape.
type Collector struct {
	db     *backend.Database
	stopCh chan struct{}
}

// NewCollector builds a Collector over db. Call Start to begin polling.
func NewCollector(db *backend.Database) *Collector {
	return &Collector{db: db, stopCh: make(chan struct{})}
}

// Start polls db.Metrics() onto the package gauges every interval, starting
// with an immediate collection.
func (c *Collector) Start(interval time.Duration) {
	c.collect()
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts polling. Stop must be called at most once.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	m := c.db.Metrics()
	odbUniqueObjects.Set(float64(m.UniqueObjects))
	odbBytesStored.Set(float64(m.BytesStored))
	odbCacheHits.Set(float64(m.CacheHits))
	odbCacheMisses.Set(float64(m.CacheMisses))
}

// Handler exposes the registered collectors for a Prometheus scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument wraps next with the per-route request counter and latency
// histogram, named after route rather than the raw URL path.
func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
