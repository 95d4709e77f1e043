// Package visibility decides when deferred placeholder work may start.
//
// A Gate is armed once per widget.  Depending on priority it fires on the
// next frame, on first intersection with the (margin-expanded) viewport, or
// in the first idle window after that intersection.  The host UI loop is
// abstracted as an Env; everything runs on that loop, so Gate does no
// locking.
package visibility

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Priority hints how urgently a widget's placeholder is needed.
type Priority int

const (
	// Auto fires on the next frame once the element is near the viewport.
	Auto Priority = iota
	// High fires on the next frame regardless of visibility.
	High
	// Low waits for visibility and then for idle time.
	Low
)

func (p Priority) String() string {
	switch p {
	case Auto:
		return "auto"
	case High:
		return "high"
	case Low:
		return "low"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority maps "high", "low", "auto" or "" to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "", "auto":
		return Auto, nil
	case "high":
		return High, nil
	case "low":
		return Low, nil
	default:
		return Auto, fmt.Errorf("visibility: unknown priority %q (want high, low or auto)", s)
	}
}

// Element is an opaque host handle for the observed node.
type Element any

// Cancel detaches a pending callback.  Calling it more than once is safe.
type Cancel func()

// Env is the host loop.  Callbacks are always delivered later on the same
// loop, never synchronously from inside the registering call.
type Env interface {
	// RequestFrame runs fn at the next paint boundary.
	RequestFrame(fn func()) Cancel
	// RequestIdle runs fn in an idle window; ok is false when the host has
	// no idle scheduling.
	RequestIdle(fn func()) (cancel Cancel, ok bool)
	// InViewport reports whether el lies within the viewport grown by
	// marginPx on every edge.
	InViewport(el Element, marginPx int) bool
	// Observe calls fn each time el starts intersecting the grown viewport.
	Observe(el Element, marginPx int, fn func()) Cancel
}

type gateState int

const (
	gateIdle gateState = iota
	gateArmed
	gateFired
	gateDisposed
)

// Gate is a one-shot trigger.  Not safe for concurrent use.
type Gate struct {
	env     Env
	state   gateState
	pending Cancel
	log     *logrus.Entry
}

// NewGate creates a gate on env.
func NewGate(env Env, log *logrus.Entry) *Gate {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Gate{env: env, log: log.WithField("component", "gate")}
}

// Schedule arms the gate.  Immediately before onTrigger runs, ready is
// consulted; if it returns false the trigger is dropped and the gate stays
// spent.  Calling Schedule on a gate that is armed, fired or disposed does
// nothing.  The returned Cancel is equivalent to Dispose.
func (g *Gate) Schedule(el Element, p Priority, marginPx int, ready func() bool, onTrigger func()) Cancel {
	if g.state != gateIdle {
		return func() {}
	}
	g.state = gateArmed
	log := g.log.WithField("priority", p)

	fire := func() {
		if g.state != gateArmed {
			return
		}
		g.state = gateFired
		g.pending = nil
		if ready != nil && !ready() {
			log.Debug("trigger skipped: no longer needed")
			return
		}
		log.Debug("trigger")
		onTrigger()
	}

	onVisible := func() {
		if p == Low {
			g.pending = g.idle(fire)
			return
		}
		g.pending = g.env.RequestFrame(fire)
	}

	switch {
	case p == High:
		g.pending = g.env.RequestFrame(fire)
	case g.env.InViewport(el, marginPx):
		onVisible()
	default:
		g.pending = g.env.Observe(el, marginPx, func() {
			if g.state != gateArmed {
				return
			}
			g.pending() // disconnect the observer
			onVisible()
		})
	}
	return g.Dispose
}

func (g *Gate) idle(fn func()) Cancel {
	if cancel, ok := g.env.RequestIdle(fn); ok {
		return cancel
	}
	return g.env.RequestFrame(fn)
}

// Dispose detaches any observer or pending callback and spends the gate.
func (g *Gate) Dispose() {
	if g.pending != nil {
		g.pending()
		g.pending = nil
	}
	g.state = gateDisposed
}

// Armed reports whether a trigger is still pending.
func (g *Gate) Armed() bool { return g.state == gateArmed }

// Fired reports whether the trigger point was reached (even if ready
// vetoed it).
func (g *Gate) Fired() bool { return g.state == gateFired }
