package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickSamplesOncePerInterval(t *testing.T) {
	var buf bytes.Buffer
	p := NewProfiler(slog.New(slog.NewTextHandler(&buf, nil)))

	start := time.Unix(1000, 0)
	clock := start
	p.now = func() time.Time { return clock }
	p.lastTime = start

	for i := range 29 {
		clock = start.Add(time.Duration(i+1) * 10 * time.Millisecond)
		_, sampled := p.Tick()
		require.False(t, sampled)
	}
	assert.Zero(t, p.FPS())

	clock = start.Add(time.Second)
	s, sampled := p.Tick()
	require.True(t, sampled)
	assert.Equal(t, 30, s.FramesInTick)
	assert.InDelta(t, 30.0, s.FPS, 1e-9)
	assert.InDelta(t, 30.0, p.FPS(), 1e-9)
	assert.Contains(t, buf.String(), "[profiler] frame stats")
	assert.Contains(t, buf.String(), "fps=30")

	clock = clock.Add(time.Millisecond)
	_, sampled = p.Tick()
	assert.False(t, sampled)
}
