package obs

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Write outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeDenied     = "denied"
	OutcomeInvalid    = "invalid"
	OutcomeNotDurable = "not_durable"
)

var (
	initOnce sync.Once

	recordWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spmi_record_writes_total",
			Help: "Record write attempts by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spmi_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	openCycles = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spmi_open_cycles",
		Help: "Number of cycles currently open for auditee input.",
	})

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spmi_build_info",
			Help: "Build of the running binary; the value is always 1.",
		},
		[]string{"version", "commit"},
	)

	persistDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spmi_persist_duration_seconds",
			Help:    "Latency of saving a collection blob.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"key"},
	)
)

// Init registers the metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(recordWrites, logins, openCycles, buildInfo, persistDuration)
	})
}

// Handler exposes the default registry for an embedding process.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WriteMetrics writes the default registry in the text exposition format, for
// processes too short-lived to be scraped.
func WriteMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// SetBuildInfo labels spmi_build_info with the running version. Earlier
// labels are dropped so only one series is exported.
func SetBuildInfo(version, commit string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit).Set(1)
}

// RecordWrite counts one write attempt.
func RecordWrite(kind, outcome string) {
	recordWrites.WithLabelValues(kind, outcome).Inc()
}

// RecordLogin counts one login attempt.
func RecordLogin(ok bool) {
	outcome := OutcomeOK
	if !ok {
		outcome = "failed"
	}
	logins.WithLabelValues(outcome).Inc()
}

// SetOpenCycles publishes the size of the open-cycle set.
func SetOpenCycles(n int) {
	openCycles.Set(float64(n))
}

// ObservePersist records how long saving key took.
func ObservePersist(key string, d time.Duration) {
	persistDuration.WithLabelValues(key).Observe(d.Seconds())
}
