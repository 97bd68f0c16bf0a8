package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-splat/engine/loader"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

func writeScene(t *testing.T, extra string) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()

	a := scene.RawAttributes{
		Positions: [][3]float32{{-0.5, 0, 0}, {0.5, 0, 0}},
		Scales:    [][3]float32{{0.3, 0.3, 0.3}, {0.3, 0.3, 0.3}},
		Opacities: []float32{0.9, 0.9},
		SH: [][3]float32{
			splat.RawDCForColor([3]float32{1, 0, 0}),
			splat.RawDCForColor([3]float32{0, 0, 1}),
		},
	}
	f, err := os.Create(filepath.Join(dir, "pair.ply"))
	require.NoError(t, err)
	require.NoError(t, loader.WritePLY(f, a))
	require.NoError(t, f.Close())

	doc := "output: {width: 32, height: 24}\n" +
		"groups:\n  - name: pair\n    path: pair.ply\n    primId: 4\n" + extra
	cfgPath = filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(doc), 0o644))
	return dir, cfgPath
}

func TestRunWritesAllOutputs(t *testing.T) {
	dir, cfgPath := writeScene(t, "")
	color := filepath.Join(dir, "color.png")
	depth := filepath.Join(dir, "depth.tif")
	id := filepath.Join(dir, "id.png")

	var stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-config", cfgPath, "-out", color, "-depth", depth, "-id", id, "-workers", "2",
	}, &stderr)
	require.NoError(t, err, stderr.String())

	f, err := os.Open(color)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())

	// Framed on the pair, so the center lies between the two splats and both are drawn.
	assert.Contains(t, stderr.String(), "drawn=2")

	assert.FileExists(t, depth)
	assert.FileExists(t, id)
}

func TestRunTurntableNumbersFiles(t *testing.T) {
	dir, cfgPath := writeScene(t, "render: {turntable: 3}\n")
	out := filepath.Join(dir, "spin.png")

	var stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-config", cfgPath, "-out", out}, &stderr))
	for _, name := range []string{"spin_0.png", "spin_1.png", "spin_2.png"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, out)
}

func TestRunErrors(t *testing.T) {
	var stderr bytes.Buffer
	ctx := context.Background()

	assert.Error(t, run(ctx, nil, &stderr))
	assert.Error(t, run(ctx, []string{"-config", "x.yaml", "-workers", "-1"}, &stderr))
	assert.Error(t, run(ctx, []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, &stderr))

	_, cfgPath := writeScene(t, "")
	err := run(ctx, []string{"-config", cfgPath}, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no outputs")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, run(cancelled, []string{"-config", cfgPath, "-out", filepath.Join(t.TempDir(), "c.png")}, &stderr))
}

func TestNumbered(t *testing.T) {
	assert.Equal(t, "out/frame_07.png", numbered("out/frame.png", 7, 12))
	assert.Equal(t, "f_0", numbered("f", 0, 2))
	assert.Equal(t, "a/b_005.tif", numbered("a/b.tif", 5, 101))
}
