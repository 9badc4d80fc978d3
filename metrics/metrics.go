// Package metrics exports container lifecycle outcomes as Prometheus
// counters.
//
// Usage:
//
//	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
//	sess := xsession.New[User](store, xsession.WithRecorder(collector))
package metrics

import (
	"github.com/bluescreen10/xsession"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xsession"

const (
	resultOK    = "ok"
	resultError = "error"
)

// Collector implements xsession.Recorder with three counters:
//
//	xsession_loads_total{state}
//	xsession_saves_total{result}
//	xsession_kills_total{result}
type Collector struct {
	loads *prometheus.CounterVec
	saves *prometheus.CounterVec
	kills *prometheus.CounterVec
}

var _ xsession.Recorder = (*Collector)(nil)

// NewCollector creates the counters and registers them with reg. A nil
// reg leaves them unregistered. It panics if registration fails, like
// prometheus.MustRegister.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Session loads by resulting state.",
		}, []string{"state"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Session store writes by result.",
		}, []string{"result"}),
		kills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kills_total",
			Help:      "Session store deletes by result.",
		}, []string{"result"}),
	}

	// pre-create every series so dashboards see zeroes
	for _, s := range []xsession.State{
		xsession.StateUninitialized,
		xsession.StateValid,
		xsession.StateExpired,
		xsession.StateCorrupt,
	} {
		c.loads.WithLabelValues(s.String())
	}
	for _, r := range []string{resultOK, resultError} {
		c.saves.WithLabelValues(r)
		c.kills.WithLabelValues(r)
	}

	if reg != nil {
		reg.MustRegister(c.loads, c.saves, c.kills)
	}
	return c
}

func (c *Collector) ObserveLoad(state xsession.State) {
	c.loads.WithLabelValues(state.String()).Inc()
}

func (c *Collector) ObserveSave(err error) {
	c.saves.WithLabelValues(result(err)).Inc()
}

func (c *Collector) ObserveKill(err error) {
	c.kills.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}
