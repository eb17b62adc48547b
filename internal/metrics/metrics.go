// Package metrics exports Prometheus counters and gauges for the
// control codec and its transport/registry glue, plus a cheap
// local-atomic mirror for deployments that don't scrape Prometheus.
//
// Grounded on and adapted line-for-line in structure from the
// teacher's internal/metrics/metrics.go (same promauto counter/gauge
// declarations, same StartHTTP, SetReadinessFunc/IsReady pattern, same
// local-atomic mirror idiom), retargeted from CAN/TCP/hub names to
// command-tag/FD/transport names.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/spa-control/internal/control"
	"github.com/kstaniek/spa-control/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters and gauges.
var (
	CommandsBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "control_commands_built_total",
		Help: "Total commands appended to a Builder, by tag.",
	}, []string{"tag"})
	CommandsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "control_commands_parsed_total",
		Help: "Total commands decoded by an Iterator, by tag.",
	}, []string{"tag"})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "control_malformed_frames_total",
		Help: "Total frames rejected by the iterator as malformed or truncated.",
	})
	FdTableSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "control_fd_table_size",
		Help: "Number of distinct FDs recorded in the most recently observed buffer's FdTable.",
	})
	TransportBytesRx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "control_transport_bytes_received_total",
		Help: "Total bytes received over the control transport.",
	})
	TransportBytesTx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "control_transport_bytes_sent_total",
		Help: "Total bytes sent over the control transport.",
	})
	TransportFdsRx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "control_transport_fds_received_total",
		Help: "Total file descriptors received as SCM_RIGHTS ancillary data.",
	})
	TransportFdsTx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "control_transport_fds_sent_total",
		Help: "Total file descriptors sent as SCM_RIGHTS ancillary data.",
	})
	RegistrySubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "control_registry_subscribers",
		Help: "Current number of registered decoded-command subscribers.",
	})
	RegistryDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "control_registry_dropped_total",
		Help: "Total commands dropped for a lagging subscriber under the drop backpressure policy.",
	})
	RegistryKicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "control_registry_kicked_total",
		Help: "Total subscribers disconnected under the kick backpressure policy.",
	})
	RegistryFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "control_registry_fanout",
		Help: "Number of subscribers targeted in the most recent broadcast.",
	})
	RegistryQueueDepthMax = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "control_registry_queue_depth_max",
		Help: "Observed max queued commands among subscribers in the most recent broadcast.",
	})
	RegistryQueueDepthAvg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "control_registry_queue_depth_avg",
		Help: "Approximate average queued commands per subscriber in the most recent broadcast.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "control_errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrTransportRead  = "transport_read"
	ErrTransportWrite = "transport_write"
	ErrBuild          = "build"
	ErrParse          = "parse"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at
// /ready on a freshly created server bound to addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, for cheap logging without scraping
// Prometheus in-process.
var (
	localBuilt       uint64
	localParsed      uint64
	localMalformed   uint64
	localBytesRx     uint64
	localBytesTx     uint64
	localFdsRx       uint64
	localFdsTx       uint64
	localErrors      uint64
	localSubscribers uint64
	localDropped     uint64
	localKicked      uint64
	localFanout      uint64
	localQDMax       uint64
	localQDAvg       uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	CommandsBuilt  uint64
	CommandsParsed uint64
	Malformed      uint64
	BytesRx        uint64
	BytesTx        uint64
	FdsRx          uint64
	FdsTx          uint64
	Errors         uint64
	Subscribers    uint64
	Dropped        uint64
	Kicked         uint64
	Fanout         uint64
	QueueDepthMax  uint64
	QueueDepthAvg  uint64
}

// Snap returns the current Snapshot.
func Snap() Snapshot {
	return Snapshot{
		CommandsBuilt:  atomic.LoadUint64(&localBuilt),
		CommandsParsed: atomic.LoadUint64(&localParsed),
		Malformed:      atomic.LoadUint64(&localMalformed),
		BytesRx:        atomic.LoadUint64(&localBytesRx),
		BytesTx:        atomic.LoadUint64(&localBytesTx),
		FdsRx:          atomic.LoadUint64(&localFdsRx),
		FdsTx:          atomic.LoadUint64(&localFdsTx),
		Errors:         atomic.LoadUint64(&localErrors),
		Subscribers:    atomic.LoadUint64(&localSubscribers),
		Dropped:        atomic.LoadUint64(&localDropped),
		Kicked:         atomic.LoadUint64(&localKicked),
		Fanout:         atomic.LoadUint64(&localFanout),
		QueueDepthMax:  atomic.LoadUint64(&localQDMax),
		QueueDepthAvg:  atomic.LoadUint64(&localQDAvg),
	}
}

// IncCommandsBuilt increments the per-tag built-command counter.
func IncCommandsBuilt(tag control.Tag) {
	CommandsBuilt.WithLabelValues(tag.String()).Inc()
	atomic.AddUint64(&localBuilt, 1)
}

// IncCommandsParsed increments the per-tag parsed-command counter.
func IncCommandsParsed(tag control.Tag) {
	CommandsParsed.WithLabelValues(tag.String()).Inc()
	atomic.AddUint64(&localParsed, 1)
}

// IncMalformed increments the malformed-frame counter.
func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

// SetFdTableSize records the current FdTable occupancy.
func SetFdTableSize(n int) {
	FdTableSize.Set(float64(n))
}

// AddTransportBytesRx adds n bytes to the received-bytes counter.
func AddTransportBytesRx(n int) {
	TransportBytesRx.Add(float64(n))
	atomic.AddUint64(&localBytesRx, uint64(n))
}

// AddTransportBytesTx adds n bytes to the sent-bytes counter.
func AddTransportBytesTx(n int) {
	TransportBytesTx.Add(float64(n))
	atomic.AddUint64(&localBytesTx, uint64(n))
}

// AddTransportFdsRx adds n to the received-FDs counter.
func AddTransportFdsRx(n int) {
	TransportFdsRx.Add(float64(n))
	atomic.AddUint64(&localFdsRx, uint64(n))
}

// AddTransportFdsTx adds n to the sent-FDs counter.
func AddTransportFdsTx(n int) {
	TransportFdsTx.Add(float64(n))
	atomic.AddUint64(&localFdsTx, uint64(n))
}

// SetRegistrySubscribers records the current subscriber count.
func SetRegistrySubscribers(n int) {
	RegistrySubscribers.Set(float64(n))
	atomic.StoreUint64(&localSubscribers, uint64(n))
}

// IncRegistryDropped increments the drop-policy counter.
func IncRegistryDropped() {
	RegistryDropped.Inc()
	atomic.AddUint64(&localDropped, 1)
}

// IncRegistryKicked increments the kick-policy counter.
func IncRegistryKicked() {
	RegistryKicked.Inc()
	atomic.AddUint64(&localKicked, 1)
}

// SetRegistryFanout records the subscriber count targeted by the most
// recent broadcast.
func SetRegistryFanout(n int) {
	RegistryFanout.Set(float64(n))
	atomic.StoreUint64(&localFanout, uint64(n))
}

// SetRegistryQueueDepth records a snapshot of max and average queue
// depth observed across subscribers in the most recent broadcast.
func SetRegistryQueueDepth(max, avg int) {
	RegistryQueueDepthMax.Set(float64(max))
	RegistryQueueDepthAvg.Set(float64(avg))
	atomic.StoreUint64(&localQDMax, uint64(max))
	atomic.StoreUint64(&localQDAvg, uint64(avg))
}

// IncError increments the named error-subsystem counter.
func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers known
// error label series so the first error doesn't pay registration
// latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrTransportRead, ErrTransportWrite, ErrBuild, ErrParse} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
