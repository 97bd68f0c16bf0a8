package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/rasterizer"
)

func TestTickWaitsForInterval(t *testing.T) {
	p := NewProfiler()
	p.SetUpdateInterval(time.Hour)
	for i := 0; i < 10; i++ {
		assert.False(t, p.Tick())
	}
	assert.Zero(t, p.Last().Frames)
}

func TestRecordAndSummarize(t *testing.T) {
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer common.SetLogger(nil)

	p := NewProfiler()
	p.SetUpdateInterval(time.Nanosecond)
	p.Record(rasterizer.FrameStats{Splats: 10, Drawn: 8, Culled: 2, Fragments: 100, Duration: 4 * time.Millisecond})
	p.Record(rasterizer.FrameStats{Splats: 10, Drawn: 6, Culled: 4, Fragments: 50, Duration: 2 * time.Millisecond})

	require.True(t, p.Tick())
	last := p.Last()
	assert.Equal(t, 2, last.Frames)
	assert.Equal(t, 20, last.Splats)
	assert.Equal(t, 14, last.Drawn)
	assert.Equal(t, 6, last.Culled)
	assert.Equal(t, 150, last.Fragments)
	assert.InDelta(t, 3, last.MeanFrameMs(), 1e-9)
	assert.Positive(t, last.FPS)

	out := buf.String()
	assert.Contains(t, out, "msg=profiler")
	assert.Contains(t, out, "drawn=7")
	assert.Contains(t, out, "culled=6")

	// The next interval starts empty.
	require.True(t, p.Tick())
	assert.Zero(t, p.Last().Frames)
}

func TestNonPositiveIntervalResets(t *testing.T) {
	p := NewProfiler()
	p.SetUpdateInterval(-1)
	assert.Equal(t, time.Second, p.updateInterval)
	assert.Zero(t, Summary{}.MeanFrameMs())
}
