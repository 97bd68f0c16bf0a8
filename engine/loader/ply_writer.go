package loader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// minStoredScale keeps log(scale) finite for degenerate axes.
const minStoredScale = 1e-12

// opacityEpsilon keeps logit(opacity) finite at 0 and 1.
const opacityEpsilon = 1e-6

// WritePLY encodes a batch as a binary little-endian 3D Gaussian Splatting
// PLY file. Only attributes the batch actually carries are written, so a
// decoded copy falls back to the same defaults. Scales are stored as log and
// opacities as logit, matching what decoding expects. The transform and
// prim id are not stored.
//
// Parameters:
//   - w: destination
//   - a: the batch to encode
//
// Returns:
//   - error: any write error
func WritePLY(w io.Writer, a scene.RawAttributes) error {
	n := a.Len()
	hasRot := len(a.Orientations) == n
	hasScale := len(a.Scales) == n
	hasOpacity := len(a.Opacities) == n
	k := 0
	if a.HasSH() {
		k = splat.CoeffCount(a.Degree)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat binary_little_endian 1.0\ncomment oxy-splat\nelement vertex %d\n", n)
	props := []string{"x", "y", "z"}
	if k > 0 {
		props = append(props, "f_dc_0", "f_dc_1", "f_dc_2")
		for i := 0; i < 3*(k-1); i++ {
			props = append(props, fmt.Sprintf("f_rest_%d", i))
		}
	}
	if hasOpacity {
		props = append(props, "opacity")
	}
	if hasScale {
		props = append(props, "scale_0", "scale_1", "scale_2")
	}
	if hasRot {
		props = append(props, "rot_0", "rot_1", "rot_2", "rot_3")
	}
	for _, p := range props {
		fmt.Fprintf(bw, "property float %s\n", p)
	}
	fmt.Fprint(bw, "end_header\n")

	rec := make([]byte, 0, 4*len(props))
	put := func(v float32) {
		rec = binary.LittleEndian.AppendUint32(rec, math.Float32bits(v))
	}

	for i, p := range a.Positions {
		rec = rec[:0]
		put(p[0])
		put(p[1])
		put(p[2])
		if k > 0 {
			coeffs := a.SH[i*k : (i+1)*k]
			put(coeffs[0][0])
			put(coeffs[0][1])
			put(coeffs[0][2])
			for c := 0; c < 3; c++ {
				for j := 1; j < k; j++ {
					put(coeffs[j][c])
				}
			}
		}
		if hasOpacity {
			o := min(max(a.Opacities[i], opacityEpsilon), 1-opacityEpsilon)
			put(math32.Log(o / (1 - o)))
		}
		if hasScale {
			s := a.Scales[i]
			put(math32.Log(max(s[0], minStoredScale)))
			put(math32.Log(max(s[1], minStoredScale)))
			put(math32.Log(max(s[2], minStoredScale)))
		}
		if hasRot {
			q := a.Orientations[i]
			put(q.W)
			put(q.X)
			put(q.Y)
			put(q.Z)
		}
		if _, err := bw.Write(rec); err != nil {
			return fmt.Errorf("write vertex %d: %w", i, err)
		}
	}
	return bw.Flush()
}
