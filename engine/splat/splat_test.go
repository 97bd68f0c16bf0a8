package splat

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

const tol = 1e-4

func randomQuat(r *rand.Rand) common.Quat {
	return common.Quat{
		X: r.Float32()*2 - 1,
		Y: r.Float32()*2 - 1,
		Z: r.Float32()*2 - 1,
		W: r.Float32()*2 - 1,
	}
}

func TestLocalCovarianceIdentity(t *testing.T) {
	c := LocalCovariance(common.IdentityQuat, [3]float32{1, 2, 3})
	assert.Equal(t, [9]float32{1, 0, 0, 0, 4, 0, 0, 0, 9}, c)
}

func TestLocalCovarianceRotatesPrincipalAxis(t *testing.T) {
	// 90 degrees about Z maps the local X axis onto world Y.
	h := math32.Sqrt(0.5)
	c := LocalCovariance(common.Quat{Z: h, W: h}, [3]float32{2, 1, 1})
	assert.InDelta(t, 1, c[0], tol) // xx
	assert.InDelta(t, 4, c[4], tol) // yy
	assert.InDelta(t, 1, c[8], tol) // zz
	assert.InDelta(t, 0, c[1], tol)
}

func TestCovarianceSymmetricPSD(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		scale := [3]float32{r.Float32() * 3, r.Float32() * 3, r.Float32() * 3}
		xf := common.Identity4()
		common.BuildModelMatrix(xf[:],
			[3]float32{r.Float32(), r.Float32(), r.Float32()},
			[3]float32{r.Float32() * 6, r.Float32() * 6, r.Float32() * 6},
			[3]float32{0.5 + r.Float32(), 0.5 + r.Float32(), 0.5 + r.Float32()},
		)
		c := WorldCovariance(LocalCovariance(randomQuat(r), scale), common.Upper3x3(xf))

		for col := 0; col < 3; col++ {
			for row := 0; row < 3; row++ {
				require.InDelta(t, c[col*3+row], c[row*3+col], tol, "asymmetric at iteration %d", i)
			}
		}

		// Quadratic form must be non-negative for any direction.
		for k := 0; k < 10; k++ {
			v := [3]float32{r.Float32()*2 - 1, r.Float32()*2 - 1, r.Float32()*2 - 1}
			var q float32
			for col := 0; col < 3; col++ {
				for row := 0; row < 3; row++ {
					q += v[row] * c[col*3+row] * v[col]
				}
			}
			require.GreaterOrEqual(t, q, float32(-1e-3), "negative quadratic form at iteration %d", i)
		}
		// Diagonal entries are variances.
		assert.GreaterOrEqual(t, c[0], float32(-1e-4))
		assert.GreaterOrEqual(t, c[4], float32(-1e-4))
		assert.GreaterOrEqual(t, c[8], float32(-1e-4))
	}
}

func TestNewAppliesTransform(t *testing.T) {
	xf := common.Identity4()
	common.BuildModelMatrix(xf[:], [3]float32{1, 2, 3}, [3]float32{}, [3]float32{2, 2, 2})
	s := New([3]float32{1, 0, 0}, common.IdentityQuat, [3]float32{1, 1, 1}, 0.7, nil, xf)

	assert.Equal(t, [3]float32{3, 2, 3}, s.Position)
	assert.InDelta(t, 4, s.Covariance[0], tol)
	assert.InDelta(t, 4, s.Covariance[4], tol)
	assert.InDelta(t, 4, s.Covariance[8], tol)
	assert.Equal(t, float32(0.7), s.Opacity)
	assert.Equal(t, [][3]float32{{0, 0, 0}}, s.SH)
}

func TestPreWeight(t *testing.T) {
	assert.Equal(t, [][3]float32{{0, 0, 0}}, PreWeight(nil))
	assert.Equal(t, [][3]float32{{0, 0, 0}}, PreWeight(make([][3]float32, 5)))

	raw := make([][3]float32, 16)
	for i := range raw {
		raw[i] = [3]float32{1, 2, 3}
	}
	w := PreWeight(raw)
	require.Len(t, w, 16)
	assert.InDelta(t, SHC0, w[0][0], 1e-6)
	assert.InDelta(t, 2*SHC1, w[2][1], 1e-6)
	assert.InDelta(t, 3*SHC3_6, w[15][2], 1e-6)
}

func TestColorDegreeZeroIsViewIndependent(t *testing.T) {
	s := Splat{SH: [][3]float32{{0.2, -0.1, 0.7}}}
	dirs := [][3]float32{{0, 0, -1}, {1, 0, 0}, common.Normalize3([3]float32{1, 1, 1}), {0, -1, 0}}
	for _, d := range dirs {
		c := s.Color(d)
		assert.InDelta(t, 0.7, c[0], 1e-6)
		assert.InDelta(t, 0.4, c[1], 1e-6)
		assert.InDelta(t, 1.0, c[2], 1e-6) // clamped
	}
}

func TestColorAbsentSHIsGray(t *testing.T) {
	s := New([3]float32{}, common.IdentityQuat, [3]float32{1, 1, 1}, 1, nil, common.Identity4())
	assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, s.Color([3]float32{0, 0, 1}))
}

func TestColorDegreeOneSigns(t *testing.T) {
	sh := make([][3]float32, 4)
	sh[1] = [3]float32{1, 0, 0} // weighted by -y
	sh[2] = [3]float32{0, 1, 0} // weighted by z
	sh[3] = [3]float32{0, 0, 1} // weighted by -x
	s := Splat{SH: sh}

	c := s.Color([3]float32{0, -0.4, 0})
	assert.InDelta(t, 0.9, c[0], 1e-6)

	c = s.Color([3]float32{0, 0, 0.3})
	assert.InDelta(t, 0.8, c[1], 1e-6)

	c = s.Color([3]float32{0.25, 0, 0})
	assert.InDelta(t, 0.25, c[2], 1e-6)
}

func TestColorHigherDegreeTerms(t *testing.T) {
	const x, y, z = 0.48, -0.6, 0.64
	const k = 0.05
	tests := []struct {
		name  string
		index int
		dir   [3]float32
		term  float32
	}{
		{"xy", 4, [3]float32{x, y, z}, x * y},
		{"yz", 5, [3]float32{x, y, z}, y * z},
		{"zz on axis", 6, [3]float32{0, 0, 1}, 2},
		{"2zz-xx-yy", 6, [3]float32{x, y, z}, 2*z*z - x*x - y*y},
		{"xz", 7, [3]float32{x, y, z}, x * z},
		{"xx-yy", 8, [3]float32{x, y, z}, x*x - y*y},
		{"y(3xx-yy)", 9, [3]float32{x, y, z}, y * (3*x*x - y*y)},
		{"xyz", 10, [3]float32{x, y, z}, x * y * z},
		{"y(4zz-xx-yy)", 11, [3]float32{x, y, z}, y * (4*z*z - x*x - y*y)},
		{"z(2zz-3xx-3yy)", 12, [3]float32{x, y, z}, z * (2*z*z - 3*x*x - 3*y*y)},
		{"z on axis", 12, [3]float32{0, 0, -1}, -2},
		{"x(4zz-xx-yy)", 13, [3]float32{x, y, z}, x * (4*z*z - x*x - y*y)},
		{"z(xx-yy)", 14, [3]float32{x, y, z}, z * (x*x - y*y)},
		{"x(xx-3yy)", 15, [3]float32{x, y, z}, x * (x*x - 3*y*y)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh := make([][3]float32, 16)
			sh[tt.index] = [3]float32{k, -k, 0}
			s := Splat{SH: sh}
			c := s.Color(tt.dir)
			assert.InDelta(t, 0.5+k*tt.term, c[0], 1e-5)
			assert.InDelta(t, 0.5-k*tt.term, c[1], 1e-5)
			assert.InDelta(t, 0.5, c[2], 1e-6)
		})
	}
}

func TestColorIgnoresBandsBeyondCount(t *testing.T) {
	dir := [3]float32{0.48, -0.6, 0.64}
	sh := make([][3]float32, 16)
	sh[9] = [3]float32{1, 1, 1}

	// Nine coefficients stop at degree 2, so sh[9] is never read.
	c := EvalSH(sh[:9], dir)
	assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, c)

	c = EvalSH(sh, dir)
	assert.NotEqual(t, [3]float32{0.5, 0.5, 0.5}, c)
}

func TestRawDCForColorRoundTrip(t *testing.T) {
	want := [3]float32{0.9, 0.1, 0.3}
	s := Splat{SH: PreWeight([][3]float32{RawDCForColor(want)})}
	got := s.Color([3]float32{0, 0, -1})
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-5)
	}
}

func TestDepthIsDistanceInFront(t *testing.T) {
	view := common.Identity4()
	common.LookAt(view[:], [3]float32{0, 0, 5}, [3]float32{}, [3]float32{0, 1, 0})

	near := Splat{Position: [3]float32{0, 0, 2}}
	far := Splat{Position: [3]float32{0, 0, -3}}
	assert.InDelta(t, 3, near.Depth(view), tol)
	assert.InDelta(t, 8, far.Depth(view), tol)
}

func TestCoeffCount(t *testing.T) {
	assert.Equal(t, 1, CoeffCount(0))
	assert.Equal(t, 16, CoeffCount(3))
	assert.Equal(t, 0, CoeffCount(4))
	assert.Equal(t, 0, CoeffCount(-1))
}
