package mtdp

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Config configures a Pipeline before it is created. The zero Config is
// valid: it builds a source -> sink pipeline (no internal stages, one pipe)
// with a 100ms consumer poll timeout, a discarding logger, a no-op
// tracer and no metrics.
type Config struct {
	// InternalStages is the number of Stage instances between the source
	// and the sink.
	InternalStages int

	// ConsumerTimeout bounds how long a stage blocks waiting for its
	// upstream pipe to produce a full buffer before re-checking whether it
	// has been asked to stop. It is also the granularity at which Wait
	// notices a quiescent pipeline. Defaults to 100ms.
	ConsumerTimeout time.Duration

	// Logger receives structured lifecycle and error events. Defaults to a
	// logrus logger with output discarded.
	Logger *logrus.Entry

	// Tracer, if set, receives one span per Source/Stage/Sink Process call.
	Tracer opentracing.Tracer

	// Metrics, if set, receives pipeline throughput counters and gauges.
	Metrics *Metrics
}

// Validate checks Config for internal consistency, aggregating every
// problem found rather than stopping at the first.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.InternalStages < 0 {
		result = multierror.Append(result, errNegativeStages)
	}
	if c.ConsumerTimeout < 0 {
		result = multierror.Append(result, errNegativeTimeout)
	}
	return result.ErrorOrNil()
}

func (c Config) withDefaults() Config {
	if c.ConsumerTimeout <= 0 {
		c.ConsumerTimeout = 100 * time.Millisecond
	}
	if c.Logger == nil {
		logger := logrus.New()
		logger.SetOutput(discardWriter{})
		c.Logger = logrus.NewEntry(logger)
	}
	if c.Tracer == nil {
		c.Tracer = opentracing.NoopTracer{}
	}
	return c
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

var (
	errNegativeStages  = xerrors.New("mtdp: internal stages must be >= 0")
	errNegativeTimeout = xerrors.New("mtdp: consumer timeout must be >= 0")
)

// Metrics collects Prometheus instrumentation for a pipeline. Every method
// is nil-safe so that a Config with Metrics left unset costs nothing beyond
// a nil check per call.
type Metrics struct {
	Produced  *prometheus.CounterVec
	Consumed  *prometheus.CounterVec
	Dropped   *prometheus.CounterVec
	Quiescent prometheus.Gauge
}

// NewMetrics builds a Metrics registered with reg under the given subsystem
// name, suitable for passing as Config.Metrics.
func NewMetrics(reg prometheus.Registerer, subsystem string) *Metrics {
	m := &Metrics{
		Produced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mtdp", Subsystem: subsystem, Name: "buffers_produced_total",
			Help: "Buffers produced, by stage name.",
		}, []string{"stage"}),
		Consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mtdp", Subsystem: subsystem, Name: "buffers_consumed_total",
			Help: "Buffers consumed, by stage name.",
		}, []string{"stage"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mtdp", Subsystem: subsystem, Name: "buffers_dropped_total",
			Help: "Buffers dropped because a downstream FIFO was full, by stage name.",
		}, []string{"stage"}),
		Quiescent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mtdp", Subsystem: subsystem, Name: "quiescent",
			Help: "1 if the pipeline is currently quiescent, 0 otherwise.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Produced, m.Consumed, m.Dropped, m.Quiescent)
	}
	return m
}

func (m *Metrics) incProduced(stage string) {
	if m == nil {
		return
	}
	m.Produced.WithLabelValues(stage).Inc()
}

func (m *Metrics) incConsumed(stage string) {
	if m == nil {
		return
	}
	m.Consumed.WithLabelValues(stage).Inc()
}

func (m *Metrics) incDropped(stage string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(stage).Inc()
}

func (m *Metrics) setQuiescent(q bool) {
	if m == nil {
		return
	}
	if q {
		m.Quiescent.Set(1)
	} else {
		m.Quiescent.Set(0)
	}
}
