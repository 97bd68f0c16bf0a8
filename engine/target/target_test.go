package target

import (
	"bytes"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func TestBufferWriteAndRead(t *testing.T) {
	color := NewBuffer(3, 2, FormatFloat32x4)
	depth := NewBuffer(3, 2, FormatFloat32)
	ids := NewBuffer(3, 2, FormatInt32)

	color.WriteFloats(1, 1, []float32{0.1, 0.2, 0.3, 0.4})
	depth.WriteFloats(2, 0, []float32{0.75})
	ids.WriteInts(0, 1, []int32{42})

	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 0.4}, color.RGBA(1, 1))
	assert.Equal(t, float32(0.75), depth.Float(2, 0))
	assert.Equal(t, int32(42), ids.Int(0, 1))

	// Cross-typed writes convert.
	ids.WriteFloats(1, 1, []float32{7.9})
	assert.Equal(t, int32(7), ids.Int(1, 1))
	depth.WriteInts(0, 0, []int32{3})
	assert.Equal(t, float32(3), depth.Float(0, 0))
}

func TestBufferIgnoresOutOfBounds(t *testing.T) {
	b := NewBuffer(2, 2, FormatFloat32x4)
	b.WriteFloats(-1, 0, []float32{1, 1, 1, 1})
	b.WriteFloats(2, 0, []float32{1, 1, 1, 1})
	b.OverColor(0, 2, [3]float32{1, 1, 1}, 0.5)
	for _, v := range b.Floats() {
		assert.Zero(t, v)
	}
	assert.Equal(t, [4]float32{}, b.RGBA(5, 5))
}

func TestBufferOverColor(t *testing.T) {
	b := NewBuffer(1, 1, FormatFloat32x4)
	b.Clear(0, 0, 1, 1)

	b.OverColor(0, 0, [3]float32{1, 0, 0}, 0.5)
	assert.InDeltaSlice(t, []float32{0.5, 0, 0.5, 1}, b.Floats(), 1e-6)

	b.Clear(0, 0, 0, 0)
	b.OverColor(0, 0, [3]float32{0, 1, 0}, 0.5)
	b.OverColor(0, 0, [3]float32{0, 0, 1}, 0.5)
	assert.InDeltaSlice(t, []float32{0, 0.25, 0.5, 0.75}, b.Floats(), 1e-6)
}

func TestBufferOverColorIgnoresScalarFormats(t *testing.T) {
	b := NewBuffer(1, 1, FormatFloat32)
	b.OverColor(0, 0, [3]float32{1, 1, 1}, 1)
	assert.Zero(t, b.Float(0, 0))
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer(2, 1, FormatFloat32x4)
	b.Clear(0.25)
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25}, b.Floats())

	b.Clear()
	assert.Equal(t, make([]float32, 8), b.Floats())

	ids := NewBuffer(2, 2, FormatInt32)
	ids.Clear(-1)
	assert.Equal(t, []int32{-1, -1, -1, -1}, ids.Ints())
}

func TestBufferResize(t *testing.T) {
	b := NewBuffer(2, 2, FormatFloat32x4)
	b.Resize(4, 3)
	assert.Equal(t, 4, b.Width())
	assert.Equal(t, 3, b.Height())
	assert.Len(t, b.Floats(), 48)

	b.Resize(-1, 3)
	assert.Equal(t, 0, b.Width())
	assert.Empty(t, b.Floats())
}

func TestColorImageFlipsRows(t *testing.T) {
	b := NewBuffer(1, 2, FormatFloat32x4)
	b.WriteFloats(0, 0, []float32{1, 0, 0, 1}) // bottom
	b.WriteFloats(0, 1, []float32{0, 0, 1, 1}) // top

	img, err := ColorImage(b)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), img.NRGBAAt(0, 0).B)
	assert.Equal(t, uint8(255), img.NRGBAAt(0, 1).R)
}

func TestExportRejectsWrongFormat(t *testing.T) {
	_, err := ColorImage(NewBuffer(1, 1, FormatInt32))
	assert.ErrorIs(t, err, ErrFormatMismatch)
	_, err = DepthImage(NewBuffer(1, 1, FormatFloat32x4))
	assert.ErrorIs(t, err, ErrFormatMismatch)
	_, err = IDImage(NewBuffer(1, 1, FormatFloat32))
	assert.ErrorIs(t, err, ErrFormatMismatch)
}

func TestIDImageBackgroundTransparent(t *testing.T) {
	b := NewBuffer(2, 1, FormatInt32)
	b.Clear(-1)
	b.WriteInts(1, 0, []int32{3})

	img, err := IDImage(b)
	require.NoError(t, err)
	assert.Zero(t, img.NRGBAAt(0, 0).A)
	assert.Equal(t, IDColor(3), img.NRGBAAt(1, 0))
	assert.NotEqual(t, IDColor(3), IDColor(4))
}

func TestEncodePNGRoundTrip(t *testing.T) {
	b := NewBuffer(4, 4, FormatFloat32x4)
	b.Clear(0.5, 0.5, 0.5, 1)

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, b))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	r, g, bl, a := img.At(2, 2).RGBA()
	assert.Equal(t, uint32(0x8080), r)
	assert.Equal(t, r, g)
	assert.Equal(t, r, bl)
	assert.Equal(t, uint32(0xffff), a)
}

func TestEncodeDepthTIFF(t *testing.T) {
	b := NewBuffer(2, 2, FormatFloat32)
	b.Clear(1)
	b.WriteFloats(0, 0, []float32{0.5})

	var buf bytes.Buffer
	require.NoError(t, EncodeDepthTIFF(&buf, b))
	img, err := tiff.Decode(&buf)
	require.NoError(t, err)

	y, _, _, _ := img.At(0, 1).RGBA()
	assert.InDelta(t, 0x8000, int(y), 2)
	y, _, _, _ = img.At(1, 0).RGBA()
	assert.Equal(t, uint32(0xffff), y)
}

func TestSaveByExtension(t *testing.T) {
	dir := t.TempDir()
	c := NewBuffer(2, 2, FormatFloat32x4)
	d := NewBuffer(2, 2, FormatFloat32)
	ids := NewBuffer(2, 2, FormatInt32)

	require.NoError(t, Save(filepath.Join(dir, "color.png"), c))
	require.NoError(t, Save(filepath.Join(dir, "color.bmp"), c))
	require.NoError(t, Save(filepath.Join(dir, "depth.tif"), d))
	require.NoError(t, Save(filepath.Join(dir, "id.PNG"), ids))
	assert.Error(t, Save(filepath.Join(dir, "color.jpg"), c))
}
