package target

// Buffer is a CPU-backed Target storing floats or ints in row-major order,
// bottom row first.
type Buffer struct {
	width  int
	height int
	format Format
	floats []float32
	ints   []int32
}

var _ Source = &Buffer{}

// NewBuffer allocates a zeroed buffer.
//
// Parameters:
//   - width: width in pixels
//   - height: height in pixels
//   - format: channel layout
//
// Returns:
//   - *Buffer: the new buffer
func NewBuffer(width, height int, format Format) *Buffer {
	b := &Buffer{format: format}
	b.Resize(width, height)
	return b
}

// Resize reallocates the buffer for new dimensions. Contents are zeroed.
// Must not be called while a render is writing into the buffer.
func (b *Buffer) Resize(width, height int) {
	width = max(width, 0)
	height = max(height, 0)
	b.width, b.height = width, height
	n := width * height * b.format.Channels()
	if b.format == FormatInt32 {
		b.ints = make([]int32, n)
		b.floats = nil
		return
	}
	b.floats = make([]float32, n)
	b.ints = nil
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int {
	return b.width
}

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int {
	return b.height
}

// Format returns the buffer's channel layout.
func (b *Buffer) Format() Format {
	return b.format
}

// Floats returns the backing float storage, nil for int buffers.
func (b *Buffer) Floats() []float32 {
	return b.floats
}

// Ints returns the backing int storage, nil for float buffers.
func (b *Buffer) Ints() []int32 {
	return b.ints
}

func (b *Buffer) offset(x, y int) (int, bool) {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return 0, false
	}
	return (y*b.width + x) * b.format.Channels(), true
}

// WriteFloats stores values at a pixel. Int buffers truncate toward zero.
func (b *Buffer) WriteFloats(x, y int, values []float32) {
	i, ok := b.offset(x, y)
	if !ok {
		return
	}
	n := min(len(values), b.format.Channels())
	if b.ints != nil {
		for c := 0; c < n; c++ {
			b.ints[i+c] = int32(values[c])
		}
		return
	}
	copy(b.floats[i:i+n], values[:n])
}

// WriteInts stores values at a pixel. Float buffers receive converted values.
func (b *Buffer) WriteInts(x, y int, values []int32) {
	i, ok := b.offset(x, y)
	if !ok {
		return
	}
	n := min(len(values), b.format.Channels())
	if b.ints != nil {
		copy(b.ints[i:i+n], values[:n])
		return
	}
	for c := 0; c < n; c++ {
		b.floats[i+c] = float32(values[c])
	}
}

// OverColor composites a color over the pixel. Only FormatFloat32x4 buffers
// are affected.
func (b *Buffer) OverColor(x, y int, rgb [3]float32, alpha float32) {
	if b.format != FormatFloat32x4 {
		return
	}
	i, ok := b.offset(x, y)
	if !ok {
		return
	}
	px := b.floats[i : i+4 : i+4]
	inv := 1 - alpha
	px[0] = rgb[0]*alpha + px[0]*inv
	px[1] = rgb[1]*alpha + px[1]*inv
	px[2] = rgb[2]*alpha + px[2]*inv
	px[3] = alpha + px[3]*inv
}

// Clear fills every pixel. With no values the buffer is zeroed.
func (b *Buffer) Clear(values ...float32) {
	ch := b.format.Channels()
	fill := make([]float32, ch)
	for c := 0; c < ch && len(values) > 0; c++ {
		fill[c] = values[min(c, len(values)-1)]
	}

	if b.ints != nil {
		v := int32(fill[0])
		for i := range b.ints {
			b.ints[i] = v
		}
		return
	}
	for i := 0; i < len(b.floats); i += ch {
		copy(b.floats[i:i+ch], fill)
	}
}

// RGBA returns the color stored at a pixel of a FormatFloat32x4 buffer, or
// zero outside the image.
func (b *Buffer) RGBA(x, y int) [4]float32 {
	i, ok := b.offset(x, y)
	if !ok || b.format != FormatFloat32x4 {
		return [4]float32{}
	}
	return [4]float32{b.floats[i], b.floats[i+1], b.floats[i+2], b.floats[i+3]}
}

// Float returns the first channel of a float buffer at a pixel.
func (b *Buffer) Float(x, y int) float32 {
	i, ok := b.offset(x, y)
	if !ok || b.floats == nil {
		return 0
	}
	return b.floats[i]
}

// Int returns the value of an int buffer at a pixel.
func (b *Buffer) Int(x, y int) int32 {
	i, ok := b.offset(x, y)
	if !ok || b.ints == nil {
		return 0
	}
	return b.ints[i]
}
