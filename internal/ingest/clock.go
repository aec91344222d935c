package ingest

import "github.com/jonboulle/clockwork"

// clock stamps run reports. Tests swap it through SetClock.
var clock = clockwork.NewRealClock()

// SetClock replaces the run clock. Pass nil to restore real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
