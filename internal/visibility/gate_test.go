package visibility

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type counter struct{ n int }

func (c *counter) fn() { c.n++ }

func always() bool { return true }

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]Priority{"": Auto, "auto": Auto, "high": High, "low": Low} {
		got, err := ParsePriority(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePriority("urgent")
	assert.Error(t, err)
	assert.Equal(t, "low", Low.String())
}

func TestGate_HighFiresNextFrameOffscreen(t *testing.T) {
	loop := NewLoop()
	g := NewGate(loop, quietLog())
	var c counter
	g.Schedule("el", High, 200, always, c.fn)

	assert.Equal(t, 0, c.n, "never synchronous")
	loop.Flush()
	assert.Equal(t, 1, c.n)
	assert.True(t, g.Fired())
}

func TestGate_AutoVisibleFiresNextFrame(t *testing.T) {
	loop := NewLoop()
	loop.SetVisible("el")
	g := NewGate(loop, quietLog())
	var c counter
	g.Schedule("el", Auto, 200, always, c.fn)
	loop.Flush()
	assert.Equal(t, 1, c.n)
}

func TestGate_AutoWaitsForIntersection(t *testing.T) {
	loop := NewLoop()
	loop.SetDistance("el", 1000)
	g := NewGate(loop, quietLog())
	var c counter
	g.Schedule("el", Auto, 200, always, c.fn)

	loop.Settle(5)
	assert.Equal(t, 0, c.n)

	loop.SetDistance("el", 150) // inside the 200px margin
	loop.Flush()                // observer delivery
	loop.Flush()                // next frame
	assert.Equal(t, 1, c.n)

	_, _, obs := loop.Pending()
	assert.Equal(t, 0, obs, "observer disconnected after first intersection")

	loop.SetDistance("el", 1000)
	loop.SetDistance("el", 0)
	loop.Settle(5)
	assert.Equal(t, 1, c.n, "fires at most once")
}

func TestGate_MarginCountsAsVisible(t *testing.T) {
	loop := NewLoop()
	loop.SetDistance("el", 200)
	assert.True(t, loop.InViewport("el", 200))
	assert.False(t, loop.InViewport("el", 199))
}

func TestGate_LowUsesIdleEvenWhenVisible(t *testing.T) {
	loop := NewLoop()
	loop.SetVisible("el")
	g := NewGate(loop, quietLog())
	var c counter
	g.Schedule("el", Low, 0, always, c.fn)

	loop.Flush()
	assert.Equal(t, 0, c.n, "frames alone do not trigger low priority")
	loop.RunIdle()
	assert.Equal(t, 1, c.n)
}

func TestGate_LowFallsBackToFrameWithoutIdle(t *testing.T) {
	loop := NewLoop()
	loop.IdleSupported = false
	loop.SetVisible("el")
	g := NewGate(loop, quietLog())
	var c counter
	g.Schedule("el", Low, 0, always, c.fn)
	loop.Flush()
	assert.Equal(t, 1, c.n)
}

func TestGate_LowOffscreenWaitsForBoth(t *testing.T) {
	loop := NewLoop()
	g := NewGate(loop, quietLog())
	var c counter
	g.Schedule("el", Low, 50, always, c.fn)

	loop.Settle(5)
	assert.Equal(t, 0, c.n)

	loop.SetVisible("el")
	loop.Flush()
	assert.Equal(t, 0, c.n)
	loop.RunIdle()
	assert.Equal(t, 1, c.n)
}

func TestGate_ReadyVetoes(t *testing.T) {
	loop := NewLoop()
	g := NewGate(loop, quietLog())
	var c counter
	g.Schedule("el", High, 0, func() bool { return false }, c.fn)
	loop.Flush()
	assert.Equal(t, 0, c.n)
	assert.False(t, g.Armed())
}

func TestGate_DisposeBeforeFire(t *testing.T) {
	loop := NewLoop()
	g := NewGate(loop, quietLog())
	var c counter
	cancel := g.Schedule("el", Auto, 0, always, c.fn)
	cancel()
	cancel()

	loop.SetVisible("el")
	loop.Settle(5)
	assert.Equal(t, 0, c.n)
	frames, idles, obs := loop.Pending()
	assert.Zero(t, frames+idles+obs)
}

func TestGate_DisposeAfterQueuedFrame(t *testing.T) {
	loop := NewLoop()
	g := NewGate(loop, quietLog())
	var c counter
	g.Schedule("el", High, 0, always, c.fn)
	g.Dispose()
	loop.Flush()
	assert.Equal(t, 0, c.n)
}

func TestGate_SecondScheduleIsNoop(t *testing.T) {
	loop := NewLoop()
	g := NewGate(loop, quietLog())
	var a, b counter
	g.Schedule("el", High, 0, always, a.fn)
	g.Schedule("el", High, 0, always, b.fn)
	loop.Settle(5)
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 0, b.n)

	g.Schedule("el", High, 0, always, b.fn)
	loop.Settle(5)
	assert.Equal(t, 0, b.n, "spent gate stays spent")
}
