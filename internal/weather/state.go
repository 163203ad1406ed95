package weather

// State is a step of the snapshot pipeline.
type State int

const (
	StateIdle State = iota
	StateResolvingLocation
	StateResolvingGrid
	StateFetchingForecasts
	StateFetchingAlerts
	StateNormalizing
	StateCached
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:              "idle",
	StateResolvingLocation: "resolving_location",
	StateResolvingGrid:     "resolving_grid",
	StateFetchingForecasts: "fetching_forecasts",
	StateFetchingAlerts:    "fetching_alerts",
	StateNormalizing:       "normalizing",
	StateCached:            "cached",
	StateDone:              "done",
	StateFailed:            "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanFail reports whether an error in state s fails the whole run.
// Alert fetching absorbs its own errors and the cache write is skippable.
func (s State) CanFail() bool {
	switch s {
	case StateResolvingLocation, StateResolvingGrid, StateFetchingForecasts:
		return true
	default:
		return false
	}
}
