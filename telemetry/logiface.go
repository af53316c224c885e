package telemetry

import "github.com/joeycumines/logiface"

// Logiface adapts a logiface.Logger into a Sink, so hosts already using
// logiface (with any of its zerolog/logrus/slog/stumpy backends) can reuse
// their existing core instead of standing up a second logging pipeline.
type Logiface[E logiface.Event] struct {
	L *logiface.Logger[E]
}

func NewLogiface[E logiface.Event](l *logiface.Logger[E]) *Logiface[E] {
	return &Logiface[E]{L: l}
}

func (s *Logiface[E]) Debug(msg string, fields ...Field) { s.log(s.L.Debug(), msg, fields) }
func (s *Logiface[E]) Info(msg string, fields ...Field)  { s.log(s.L.Info(), msg, fields) }
func (s *Logiface[E]) Warn(msg string, fields ...Field)  { s.log(s.L.Warning(), msg, fields) }

func (s *Logiface[E]) Error(msg string, err error, fields ...Field) {
	b := s.L.Err()
	if err != nil {
		b = b.Err(err)
	}
	s.log(b, msg, fields)
}

func (s *Logiface[E]) log(b *logiface.Builder[E], msg string, fields []Field) {
	for _, f := range fields {
		b = b.Field(f.Key, f.Value)
	}
	b.Log(msg)
}

// IncCounter and SetGauge have no logiface equivalent; they are logged as
// structured debug events so a metrics-blind backend still records them.
func (s *Logiface[E]) IncCounter(name string, delta float64, fields ...Field) {
	s.log(s.L.Debug(), "counter:"+name, append(fields, F("delta", delta)))
}

func (s *Logiface[E]) SetGauge(name string, value float64, fields ...Field) {
	s.log(s.L.Debug(), "gauge:"+name, append(fields, F("value", value)))
}
