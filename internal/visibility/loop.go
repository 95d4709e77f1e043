package visibility

// Loop is a manually driven Env.  Frames and idle windows run only when
// Flush or RunIdle is called; visibility changes are pushed with
// SetDistance.  The CLI simulator and tests drive widgets through it.
type Loop struct {
	// IdleSupported toggles RequestIdle availability.
	IdleSupported bool

	seq      int
	frames   []task
	idles    []task
	observed map[int]observer
	dist     map[Element]int
}

type task struct {
	id int
	fn func()
}

type observer struct {
	el     Element
	margin int
	fn     func()
	inside bool
}

// Offscreen is the distance reported for elements never placed.
const Offscreen = 1 << 30

// NewLoop returns a loop with idle scheduling enabled.
func NewLoop() *Loop {
	return &Loop{
		IdleSupported: true,
		observed:      make(map[int]observer),
		dist:          make(map[Element]int),
	}
}

func (l *Loop) next() int { l.seq++; return l.seq }

func (l *Loop) RequestFrame(fn func()) Cancel {
	id := l.next()
	l.frames = append(l.frames, task{id, fn})
	return func() { l.frames = drop(l.frames, id) }
}

func (l *Loop) RequestIdle(fn func()) (Cancel, bool) {
	if !l.IdleSupported {
		return nil, false
	}
	id := l.next()
	l.idles = append(l.idles, task{id, fn})
	return func() { l.idles = drop(l.idles, id) }, true
}

func (l *Loop) InViewport(el Element, marginPx int) bool {
	return l.distance(el) <= marginPx
}

func (l *Loop) Observe(el Element, marginPx int, fn func()) Cancel {
	id := l.next()
	l.observed[id] = observer{el: el, margin: marginPx, fn: fn, inside: l.InViewport(el, marginPx)}
	return func() { delete(l.observed, id) }
}

// SetDistance places el px pixels outside the viewport (0 or less means
// on screen) and notifies observers whose grown viewport it entered.
// Notifications are queued as frame-independent deliveries and run by the
// next Flush.
func (l *Loop) SetDistance(el Element, px int) {
	l.dist[el] = px
	for id, o := range l.observed {
		if o.el != el {
			continue
		}
		inside := px <= o.margin
		if inside && !o.inside {
			fn := o.fn
			oid := id
			l.frames = append(l.frames, task{l.next(), func() {
				if _, ok := l.observed[oid]; ok {
					fn()
				}
			}})
		}
		o.inside = inside
		l.observed[id] = o
	}
}

// SetVisible is SetDistance(el, 0).
func (l *Loop) SetVisible(el Element) { l.SetDistance(el, 0) }

func (l *Loop) distance(el Element) int {
	if d, ok := l.dist[el]; ok {
		return d
	}
	return Offscreen
}

// Flush runs every frame callback queued before the call.  Callbacks
// queued while flushing wait for the next Flush.  Returns the number run.
func (l *Loop) Flush() int {
	batch := l.frames
	l.frames = nil
	for _, t := range batch {
		t.fn()
	}
	return len(batch)
}

// RunIdle runs queued idle callbacks, same batching rules as Flush.
func (l *Loop) RunIdle() int {
	batch := l.idles
	l.idles = nil
	for _, t := range batch {
		t.fn()
	}
	return len(batch)
}

// Settle flushes frames and idle windows until both queues are empty or
// max rounds have run.
func (l *Loop) Settle(max int) {
	for i := 0; i < max; i++ {
		if l.Flush()+l.RunIdle() == 0 {
			return
		}
	}
}

// Pending reports queued frame and idle callbacks and active observers.
func (l *Loop) Pending() (frames, idles, observers int) {
	return len(l.frames), len(l.idles), len(l.observed)
}

func drop(ts []task, id int) []task {
	for i, t := range ts {
		if t.id == id {
			return append(ts[:i:i], ts[i+1:]...)
		}
	}
	return ts
}
