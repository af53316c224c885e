package telemetry

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus adapts a Sink's counters/gauges onto prometheus.Collectors,
// registered lazily by name the first time a name is seen, with the label
// keys of that first call; later calls for the same name reuse that vector —
// grounded on itskum47-FluxForge's observability package, which registers a
// fixed set of promauto vectors up front; here the vector set is dynamic
// because the engine doesn't know its host's metric names ahead of time.
//
// Logging calls are forwarded to an underlying Sink (Nop by default); only
// IncCounter/SetGauge are intercepted.
type Prometheus struct {
	Registerer prometheus.Registerer
	Logs       Sink

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
}

func NewPrometheus(reg prometheus.Registerer, logs Sink) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		Registerer: reg,
		Logs:       OrNop(logs),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

func (p *Prometheus) Debug(msg string, fields ...Field)            { p.Logs.Debug(msg, fields...) }
func (p *Prometheus) Info(msg string, fields ...Field)             { p.Logs.Info(msg, fields...) }
func (p *Prometheus) Warn(msg string, fields ...Field)             { p.Logs.Warn(msg, fields...) }
func (p *Prometheus) Error(msg string, err error, fields ...Field) { p.Logs.Error(msg, err, fields...) }

func (p *Prometheus) IncCounter(name string, delta float64, fields ...Field) {
	keys, values := labelsOf(fields)
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, keys)
		p.Registerer.MustRegister(vec)
		p.counters[name] = vec
	}
	p.mu.Unlock()
	vec.WithLabelValues(values...).Add(delta)
}

func (p *Prometheus) SetGauge(name string, value float64, fields ...Field) {
	keys, values := labelsOf(fields)
	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, keys)
		p.Registerer.MustRegister(vec)
		p.gauges[name] = vec
	}
	p.mu.Unlock()
	vec.WithLabelValues(values...).Set(value)
}

func labelsOf(fields []Field) (keys, values []string) {
	keys = make([]string, len(fields))
	values = make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.Key
		values[i] = toLabelValue(f.Value)
	}
	return keys, values
}

func toLabelValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
