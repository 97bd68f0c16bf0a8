package loader

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

const tol = 1e-5

func sampleBatch(n, degree int) scene.RawAttributes {
	a := scene.RawAttributes{Degree: degree}
	k := splat.CoeffCount(degree)
	h := math32.Sqrt(0.5)
	for i := 0; i < n; i++ {
		f := float32(i)
		a.Positions = append(a.Positions, [3]float32{f, -f, 2 * f})
		a.Orientations = append(a.Orientations, common.Quat{Z: h, W: h})
		a.Scales = append(a.Scales, [3]float32{0.1 + f, 0.2, 0.3})
		a.Opacities = append(a.Opacities, 0.25+0.1*f)
		for j := 0; j < k; j++ {
			a.SH = append(a.SH, [3]float32{f + float32(j), -float32(j), 0.5})
		}
	}
	return a
}

func encode(t *testing.T, a scene.RawAttributes) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WritePLY(&buf, a))
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	want := sampleBatch(3, 2)
	l := NewLoader(BackendTypePLY)
	got, err := l.LoadReader("mem", bytes.NewReader(encode(t, want)))
	require.NoError(t, err)

	require.Equal(t, 3, got.Len())
	assert.Equal(t, 2, got.Degree)
	assert.True(t, got.HasSH())
	assert.Equal(t, want.Positions, got.Positions)
	for i := range want.Positions {
		assert.InDelta(t, want.Opacities[i], got.Opacities[i], tol)
		for c := 0; c < 3; c++ {
			assert.InDelta(t, want.Scales[i][c], got.Scales[i][c], tol)
		}
		assert.InDelta(t, want.Orientations[i].Z, got.Orientations[i].Z, tol)
		assert.InDelta(t, want.Orientations[i].W, got.Orientations[i].W, tol)
	}
	assert.Equal(t, want.SH, got.SH)

	cached, ok := l.Get("mem")
	require.True(t, ok)
	assert.Equal(t, got.Positions, cached.Positions)
}

func TestMaxSHDegreeTruncates(t *testing.T) {
	src := sampleBatch(2, 3)
	l := NewLoader(BackendTypePLY, WithMaxSHDegree(1))
	got, err := l.LoadReader("mem", bytes.NewReader(encode(t, src)))
	require.NoError(t, err)

	assert.Equal(t, 1, got.Degree)
	require.Len(t, got.SH, 2*4)
	// Kept bands come from the same coefficients of the original.
	assert.Equal(t, src.SH[16:20], got.SH[4:8])
}

func TestPositionsOnly(t *testing.T) {
	src := scene.RawAttributes{Positions: [][3]float32{{1, 2, 3}, {4, 5, 6}}}
	got, err := NewLoader(BackendTypePLY).LoadReader("mem", bytes.NewReader(encode(t, src)))
	require.NoError(t, err)

	assert.Equal(t, src.Positions, got.Positions)
	assert.Nil(t, got.Orientations)
	assert.Nil(t, got.Scales)
	assert.Nil(t, got.Opacities)
	assert.False(t, got.HasSH())
}

const asciiPLY = `ply
format ascii 1.0
comment point cloud with faces
element vertex 2
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
property float opacity
property float scale_0
property float scale_1
property float scale_2
element face 1
property list uchar int vertex_indices
end_header
0 0 0 255 0 0 0 0 0 0
1 2 3 0 255 255 2 -1 -1 -1
3 0 1 1
`

func TestASCIIWithColorsAndFaces(t *testing.T) {
	got, err := NewLoader(BackendTypePLY).LoadReader("ascii", strings.NewReader(asciiPLY))
	require.NoError(t, err)

	require.Equal(t, 2, got.Len())
	assert.Equal(t, [3]float32{1, 2, 3}, got.Positions[1])
	assert.InDelta(t, 0.5, got.Opacities[0], tol)
	assert.InDelta(t, 1/(1+math32.Exp(-2)), got.Opacities[1], tol)
	assert.InDelta(t, 1, got.Scales[0][0], tol)
	assert.InDelta(t, math32.Exp(-1), got.Scales[1][2], tol)

	// 8-bit colors become a degree-0 DC term that evaluates back to the color.
	require.True(t, got.HasSH())
	s := splat.Splat{SH: splat.PreWeight(got.SH[1:2])}
	c := s.Color([3]float32{0, 0, -1})
	assert.InDelta(t, 0, c[0], tol)
	assert.InDelta(t, 1, c[1], tol)
	assert.InDelta(t, 1, c[2], tol)
}

func TestBinaryBigEndianSkipsLeadingElement(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("ply\r\nformat binary_big_endian 1.0\r\n" +
		"element camera 1\r\nproperty list uchar float params\r\nproperty double id\r\n" +
		"element vertex 1\r\nproperty double x\r\nproperty short y\r\nproperty float z\r\nproperty float rot_0\r\nproperty float rot_1\r\nproperty float rot_2\r\nproperty float rot_3\r\n" +
		"end_header\r\n")
	// camera: 2 params then the id
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint8(2)))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, []float32{9, 9}))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, float64(42)))
	// vertex
	require.NoError(t, binary.Write(&buf, binary.BigEndian, float64(1.5)))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int16(-7)))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, []float32{0.25, 2, 0, 0, 0}))

	got, err := NewLoader(BackendTypePLY).LoadReader("be", &buf)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, [3]float32{1.5, -7, 0.25}, got.Positions[0])
	// rot_0 is w; the quaternion is normalized.
	assert.Equal(t, common.IdentityQuat, got.Orientations[0])
}

func TestZeroQuaternionBecomesIdentity(t *testing.T) {
	src := scene.RawAttributes{
		Positions:    [][3]float32{{0, 0, 0}},
		Orientations: []common.Quat{{}},
	}
	got, err := NewLoader(BackendTypePLY).LoadReader("mem", bytes.NewReader(encode(t, src)))
	require.NoError(t, err)
	assert.Equal(t, common.IdentityQuat, got.Orientations[0])
}

func TestDecodeErrors(t *testing.T) {
	valid := encode(t, sampleBatch(4, 0))

	tests := []struct {
		name string
		data string
		want error
	}{
		{"bad magic", "plx\nformat ascii 1.0\nend_header\n", ErrInvalidPLY},
		{"no end_header", "ply\nformat ascii 1.0\nelement vertex 1\n", ErrInvalidPLY},
		{"no format", "ply\nelement vertex 0\nproperty float x\nend_header\n", ErrInvalidPLY},
		{"unknown type", "ply\nformat ascii 1.0\nelement vertex 1\nproperty quad x\nend_header\n", ErrInvalidPLY},
		{"no vertex", "ply\nformat ascii 1.0\nelement face 0\nend_header\n", ErrInvalidPLY},
		{"no position", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nend_header\n1 2\n", ErrMissingPosition},
		{"bad number", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\nend_header\n1 two 3\n", ErrInvalidPLY},
		{"truncated ascii", "ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nproperty float y\nproperty float z\nend_header\n1 2 3\n", io.ErrUnexpectedEOF},
		{"truncated binary", string(valid[:len(valid)-5]), io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(BackendTypePLY).LoadReader(tt.name, strings.NewReader(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadSaveAndCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.ply")
	var progress bytes.Buffer
	l := NewLoader(BackendTypePLY, WithProgress(&progress))

	src := sampleBatch(5, 1)
	require.NoError(t, l.Save(path, src))

	a, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Len())
	assert.Contains(t, l.Splats(), path)

	// Cached: the file can disappear without affecting Load.
	require.NoError(t, l.Save(path, sampleBatch(1, 0)))
	b, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, b.Len())

	l.Evict(path)
	c, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestConcurrentLoadsShareResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.ply")
	l := NewLoader(BackendTypePLY)
	require.NoError(t, l.Save(path, sampleBatch(64, 3)))

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := l.Load(path)
			if err == nil {
				results[i] = a.Len()
			}
		}()
	}
	wg.Wait()
	for _, n := range results {
		assert.Equal(t, 64, n)
	}
}

func TestUnsupportedAndMissingFiles(t *testing.T) {
	l := NewLoader(BackendTypePLY)

	_, err := l.Load("scene.splat")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.ErrorIs(t, l.Save(filepath.Join(t.TempDir(), "x.obj"), sampleBatch(1, 0)), ErrUnsupportedFormat)

	_, err = l.Load(filepath.Join(t.TempDir(), "missing.PLY"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWithSplatsPrepopulates(t *testing.T) {
	l := NewLoader(BackendTypePLY, WithSplats("seed", sampleBatch(2, 0)))
	a, err := l.Load("seed")
	require.NoError(t, err)
	assert.Equal(t, 2, a.Len())
}

func TestLoadGroupsAddsInOrder(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(BackendTypePLY)
	var groups []config.GroupConfig
	for i, n := range []int{3, 1, 2} {
		path := filepath.Join(dir, fmt.Sprintf("g%d.ply", i))
		require.NoError(t, l.Save(path, sampleBatch(n, 0)))
		groups = append(groups, config.GroupConfig{
			Name:      fmt.Sprintf("g%d", i),
			Path:      path,
			PrimID:    10 + i,
			Translate: []float32{0, 0, float32(i)},
		})
	}

	sc := scene.NewScene("groups")
	handles, err := LoadGroups(context.Background(), l, groups, sc, 2)
	require.NoError(t, err)
	require.Len(t, handles, 3)
	assert.Equal(t, 6, sc.SplatCount())

	infos := sc.Groups()
	require.Len(t, infos, 3)
	for i, info := range infos {
		assert.Equal(t, groups[i].Name, info.Name)
		assert.Equal(t, groups[i].PrimID, info.PrimID)
	}
	_, hi, ok := sc.Bounds()
	require.True(t, ok)
	// g0 holds the splat at (2, -2, 4); its translation is zero.
	assert.Equal(t, float32(4), hi[2])
}

func TestLoadGroupsFailsAtomically(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(BackendTypePLY)
	good := filepath.Join(dir, "good.ply")
	require.NoError(t, l.Save(good, sampleBatch(2, 0)))

	sc := scene.NewScene("groups")
	_, err := LoadGroups(context.Background(), l, []config.GroupConfig{
		{Name: "good", Path: good},
		{Name: "bad", Path: filepath.Join(dir, "missing.ply")},
	}, sc, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `group "bad"`)
	assert.Zero(t, sc.SplatCount())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = LoadGroups(ctx, l, []config.GroupConfig{{Name: "good", Path: good}}, sc, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
