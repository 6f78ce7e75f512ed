package executor

import "time"

// clock abstracts time so cooldown behavior is testable without sleeping.
type clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// cooldownGate remembers when a gated ability last fired.
type cooldownGate struct {
	interval time.Duration
	last     time.Time
}

func (g *cooldownGate) ready(now time.Time) bool {
	return g.last.IsZero() || now.Sub(g.last) >= g.interval
}

func (g *cooldownGate) fire(now time.Time) {
	g.last = now
}
