package arg

// Strategy selects how arguments are provisioned (§4.3).
type Strategy int

const (
	// StrategyStatic uses a fixed set of arguments built at construction.
	StrategyStatic Strategy = iota
	// StrategyReuse builds arguments on demand via a factory and returns
	// them to a pool when a task finishes with them.
	StrategyReuse
	// StrategyOneTime builds a fresh argument per task and discards it
	// after a single use.
	StrategyOneTime
)

func (s Strategy) String() string {
	switch s {
	case StrategyStatic:
		return "static"
	case StrategyReuse:
		return "reuse"
	case StrategyOneTime:
		return "one_time"
	default:
		return "unknown"
	}
}

// deactivateOnRelease reports whether the strategy always deactivates an
// Activatable argument before release, rather than leaving it active for
// reuse across tasks. Only one-time arguments are discarded after a single
// use, so only they pay the deactivation cost every time (§4.3 acquisition
// semantics: "One-time single/multi: deactivation-on-release is always
// true").
func (s Strategy) deactivateOnRelease() bool {
	return s == StrategyOneTime
}
