// v0
// internal/stream/state.go
package stream

import "fmt"

// State is the lifecycle position of an Emitter.
type State int

const (
	Starting State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats is the loop's accumulator. Only the emission loop mutates it.
type Stats struct {
	Total     int
	Succeeded int
}

// SuccessRate is the running success percentage, 0 before the first send.
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total) * 100
}

func (s Stats) String() string {
	return fmt.Sprintf("%d/%d successful transmissions", s.Succeeded, s.Total)
}
