package loader

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// maxPrealloc caps the capacity reserved from a header count, so a lying
// header cannot force a huge allocation before any data is read.
const maxPrealloc = 1 << 20

// recordReader decodes element records from the PLY body. Each scalar
// property yields one value; a list property yields its element count and
// its items are discarded.
type recordReader interface {
	next(el *plyElement, dst []float64) error
	skip(el *plyElement) error
}

func newRecordReader(format plyFormat, r *bufio.Reader) recordReader {
	if format == plyASCII {
		sc := bufio.NewScanner(r)
		sc.Split(bufio.ScanWords)
		return &asciiRecordReader{sc: sc}
	}
	return &binaryRecordReader{r: r, order: format.byteOrder(), buf: make([]byte, 64)}
}

type binaryRecordReader struct {
	r     *bufio.Reader
	order binary.ByteOrder
	buf   []byte
}

func (b *binaryRecordReader) read(n int) ([]byte, error) {
	if cap(b.buf) < n {
		b.buf = make([]byte, n)
	}
	buf := b.buf[:n]
	if _, err := io.ReadFull(b.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

func (b *binaryRecordReader) next(el *plyElement, dst []float64) error {
	if stride, ok := el.stride(); ok {
		buf, err := b.read(stride)
		if err != nil {
			return err
		}
		off := 0
		for i, p := range el.props {
			dst[i] = p.typ.decode(buf[off:], b.order)
			off += p.typ.size()
		}
		return nil
	}

	for i, p := range el.props {
		if !p.list {
			buf, err := b.read(p.typ.size())
			if err != nil {
				return err
			}
			dst[i] = p.typ.decode(buf, b.order)
			continue
		}
		buf, err := b.read(p.countTyp.size())
		if err != nil {
			return err
		}
		count := p.countTyp.decode(buf, b.order)
		if count < 0 {
			return fmt.Errorf("negative list length in %s.%s: %w", el.name, p.name, ErrInvalidPLY)
		}
		if _, err := b.r.Discard(int(count) * p.typ.size()); err != nil {
			return io.ErrUnexpectedEOF
		}
		dst[i] = count
	}
	return nil
}

func (b *binaryRecordReader) skip(el *plyElement) error {
	if stride, ok := el.stride(); ok {
		total := int64(stride) * int64(el.count)
		if n, err := io.CopyN(io.Discard, b.r, total); err != nil || n != total {
			return io.ErrUnexpectedEOF
		}
		return nil
	}
	scratch := make([]float64, len(el.props))
	for i := 0; i < el.count; i++ {
		if err := b.next(el, scratch); err != nil {
			return err
		}
	}
	return nil
}

type asciiRecordReader struct {
	sc *bufio.Scanner
}

func (a *asciiRecordReader) token() (float64, error) {
	if !a.sc.Scan() {
		if err := a.sc.Err(); err != nil {
			return 0, err
		}
		return 0, io.ErrUnexpectedEOF
	}
	v, err := strconv.ParseFloat(a.sc.Text(), 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q: %w", a.sc.Text(), ErrInvalidPLY)
	}
	return v, nil
}

func (a *asciiRecordReader) next(el *plyElement, dst []float64) error {
	for i, p := range el.props {
		v, err := a.token()
		if err != nil {
			return err
		}
		dst[i] = v
		if !p.list {
			continue
		}
		if v < 0 {
			return fmt.Errorf("negative list length in %s.%s: %w", el.name, p.name, ErrInvalidPLY)
		}
		for k := 0; k < int(v); k++ {
			if _, err := a.token(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *asciiRecordReader) skip(el *plyElement) error {
	scratch := make([]float64, len(el.props))
	for i := 0; i < el.count; i++ {
		if err := a.next(el, scratch); err != nil {
			return err
		}
	}
	return nil
}

// vertexLayout locates the Gaussian attributes within a vertex record.
// Missing groups are marked with has* = false and left to ingestion defaults.
type vertexLayout struct {
	pos [3]int

	rot    [4]int // w, x, y, z
	hasRot bool

	scale    [3]int
	hasScale bool

	opacity int

	dc    [3]int
	hasDC bool

	// rest holds the f_rest_* columns in order; fileCoeffs is the per-channel
	// coefficient count they describe (K-1), outCoeffs how many are kept.
	rest       []int
	fileCoeffs int
	outCoeffs  int

	rgb      [3]int
	hasRGB   bool
	rgbScale float64
}

func lookupAll(idx map[string]int, names ...string) ([]int, bool) {
	out := make([]int, len(names))
	for i, n := range names {
		j, ok := idx[n]
		if !ok {
			return nil, false
		}
		out[i] = j
	}
	return out, true
}

// newVertexLayout maps the standard 3D Gaussian Splatting property names.
//
// Parameters:
//   - el: the vertex element
//   - maxDegree: highest SH degree to keep
//
// Returns:
//   - vertexLayout: column positions for every recognized attribute
//   - error: ErrMissingPosition when x, y or z is absent
func newVertexLayout(el *plyElement, maxDegree int) (vertexLayout, error) {
	idx := el.index()
	maxDegree = common.Clamp(maxDegree, 0, splat.MaxDegree)
	var l vertexLayout

	pos, ok := lookupAll(idx, "x", "y", "z")
	if !ok {
		return l, ErrMissingPosition
	}
	copy(l.pos[:], pos)

	if rot, ok := lookupAll(idx, "rot_0", "rot_1", "rot_2", "rot_3"); ok {
		copy(l.rot[:], rot)
		l.hasRot = true
	}
	if sc, ok := lookupAll(idx, "scale_0", "scale_1", "scale_2"); ok {
		copy(l.scale[:], sc)
		l.hasScale = true
	}
	l.opacity = -1
	if op, ok := idx["opacity"]; ok {
		l.opacity = op
	}

	if dc, ok := lookupAll(idx, "f_dc_0", "f_dc_1", "f_dc_2"); ok {
		copy(l.dc[:], dc)
		l.hasDC = true

		var rest []int
		for i := 0; ; i++ {
			j, ok := idx["f_rest_"+strconv.Itoa(i)]
			if !ok {
				break
			}
			rest = append(rest, j)
		}
		if len(rest)%3 == 0 && splat.ValidCoeffCount(len(rest)/3+1) && len(rest) > 0 {
			l.rest = rest
			l.fileCoeffs = len(rest) / 3
			l.outCoeffs = min(l.fileCoeffs, splat.CoeffCount(maxDegree)-1)
		}
	} else if rgb, ok := lookupAll(idx, "red", "green", "blue"); ok {
		copy(l.rgb[:], rgb)
		l.hasRGB = true
		switch el.props[rgb[0]].typ {
		case typeUint8:
			l.rgbScale = 255
		case typeUint16:
			l.rgbScale = 65535
		default:
			l.rgbScale = 1
		}
	}
	return l, nil
}

// degree returns the SH degree the layout produces.
func (l *vertexLayout) degree() int {
	switch l.outCoeffs + 1 {
	case 16:
		return 3
	case 9:
		return 2
	case 4:
		return 1
	default:
		return 0
	}
}

func sigmoid(v float32) float32 {
	return 1 / (1 + math32.Exp(-v))
}

// decodePLY parses a complete PLY stream into raw splat attributes.
//
// Parameters:
//   - r: the PLY data
//   - maxDegree: highest SH degree to keep (higher bands are dropped)
//
// Returns:
//   - scene.RawAttributes: the decoded batch with the identity transform
//   - *plyHeader: the parsed header
//   - error: wrapped ErrInvalidPLY, ErrMissingPosition or io.ErrUnexpectedEOF
func decodePLY(r io.Reader, maxDegree int) (scene.RawAttributes, *plyHeader, error) {
	var out scene.RawAttributes

	br := bufio.NewReaderSize(r, 1<<16)
	h, err := readHeader(br)
	if err != nil {
		return out, nil, err
	}
	vi, vert := h.vertex()
	if vert == nil {
		return out, h, fmt.Errorf("%w: %w", errNoVertexElement, ErrInvalidPLY)
	}
	layout, err := newVertexLayout(vert, maxDegree)
	if err != nil {
		return out, h, err
	}

	rr := newRecordReader(h.format, br)
	for i := 0; i < vi; i++ {
		if err := rr.skip(&h.elements[i]); err != nil {
			return out, h, fmt.Errorf("skip element %q: %w", h.elements[i].name, err)
		}
	}

	n := vert.count
	capacity := min(n, maxPrealloc)
	out.Positions = make([][3]float32, 0, capacity)
	if layout.hasRot {
		out.Orientations = make([]common.Quat, 0, capacity)
	}
	if layout.hasScale {
		out.Scales = make([][3]float32, 0, capacity)
	}
	if layout.opacity >= 0 {
		out.Opacities = make([]float32, 0, capacity)
	}
	k := layout.outCoeffs + 1
	if layout.hasDC || layout.hasRGB {
		out.SH = make([][3]float32, 0, min(n*k, maxPrealloc))
		out.Degree = layout.degree()
	}

	rec := make([]float64, len(vert.props))
	for i := 0; i < n; i++ {
		if err := rr.next(vert, rec); err != nil {
			return out, h, fmt.Errorf("vertex %d of %d: %w", i, n, err)
		}
		f := func(col int) float32 { return float32(rec[col]) }

		out.Positions = append(out.Positions, [3]float32{f(layout.pos[0]), f(layout.pos[1]), f(layout.pos[2])})

		if layout.hasRot {
			q := common.Quat{W: f(layout.rot[0]), X: f(layout.rot[1]), Y: f(layout.rot[2]), Z: f(layout.rot[3])}
			out.Orientations = append(out.Orientations, normalizeQuat(q))
		}
		if layout.hasScale {
			out.Scales = append(out.Scales, [3]float32{
				math32.Exp(f(layout.scale[0])),
				math32.Exp(f(layout.scale[1])),
				math32.Exp(f(layout.scale[2])),
			})
		}
		if layout.opacity >= 0 {
			out.Opacities = append(out.Opacities, sigmoid(f(layout.opacity)))
		}

		switch {
		case layout.hasDC:
			out.SH = append(out.SH, [3]float32{f(layout.dc[0]), f(layout.dc[1]), f(layout.dc[2])})
			// f_rest is channel-major: all red coefficients, then green, then blue.
			for j := 0; j < layout.outCoeffs; j++ {
				out.SH = append(out.SH, [3]float32{
					f(layout.rest[j]),
					f(layout.rest[layout.fileCoeffs+j]),
					f(layout.rest[2*layout.fileCoeffs+j]),
				})
			}
		case layout.hasRGB:
			s := float32(layout.rgbScale)
			out.SH = append(out.SH, splat.RawDCForColor([3]float32{
				f(layout.rgb[0]) / s,
				f(layout.rgb[1]) / s,
				f(layout.rgb[2]) / s,
			}))
		}
	}
	return out, h, nil
}

// normalizeQuat returns q at unit length, or the identity for a zero quaternion.
func normalizeQuat(q common.Quat) common.Quat {
	l := math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l == 0 || math32.IsNaN(l) {
		return common.IdentityQuat
	}
	return common.Quat{X: q.X / l, Y: q.Y / l, Z: q.Z / l, W: q.W / l}
}
