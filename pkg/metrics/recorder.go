// Package metrics exports gate activity to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"callrate/pkg/ratelimit"
)

// Recorder is a ratelimit.Observer backed by Prometheus collectors. Series
// are labelled by target name, so targets sharing a name share series.
type Recorder struct {
	passes  *prometheus.CounterVec
	waits   *prometheus.HistogramVec
	cancels *prometheus.CounterVec

	namespace string
	reg       prometheus.Registerer
}

var _ ratelimit.Observer = (*Recorder)(nil)

// NewRecorder creates the collectors under namespace and registers them on
// reg. Registering twice on the same registry fails.
func NewRecorder(namespace string, reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Number of calls let through the gate.",
		}, []string{"target"}),
		waits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wait_seconds",
			Help:      "Time calls spent sleeping before passing the gate.",
			Buckets:   []float64{0, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"target"}),
		cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Number of waits abandoned because their context ended.",
		}, []string{"target"}),
		namespace: namespace,
		reg:       reg,
	}

	for _, c := range []prometheus.Collector{r.passes, r.waits, r.cancels} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) OnPass(target *ratelimit.Target, waited time.Duration) {
	r.passes.WithLabelValues(target.Name()).Inc()
	r.waits.WithLabelValues(target.Name()).Observe(waited.Seconds())
}

func (r *Recorder) OnCancel(target *ratelimit.Target, err error) {
	r.cancels.WithLabelValues(target.Name()).Inc()
}

// TrackGate exports the number of targets g holds state for as
// <namespace>_targets.
func (r *Recorder) TrackGate(g *ratelimit.Gate) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Name:        "targets",
		Help:        "Number of targets the gate holds state for, including expired ones not yet swept.",
		ConstLabels: prometheus.Labels{"gate": g.Name()},
	}, func() float64 {
		return float64(g.Targets())
	})

	if err := r.reg.Register(gauge); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return err
	}
	return nil
}
