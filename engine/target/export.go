package target

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/Carmen-Shannon/oxy-splat/common"
)

// Source is a Target whose pixels can be read back for export. Buffer implements it.
type Source interface {
	Target
	RGBA(x, y int) [4]float32
	Float(x, y int) float32
	Int(x, y int) int32
}

// ColorImage converts a FormatFloat32x4 target to an 8-bit image, flipping
// rows so the result is top-down.
//
// Parameters:
//   - t: the color target
//
// Returns:
//   - *image.NRGBA: the converted image
//   - error: ErrFormatMismatch if t is not a color target
func ColorImage(t Source) (*image.NRGBA, error) {
	return ColorImageInto(nil, t)
}

// ColorImageInto is ColorImage writing into dst when dst already has the
// target's size. A new image is allocated otherwise.
func ColorImageInto(dst *image.NRGBA, t Source) (*image.NRGBA, error) {
	if t.Format() != FormatFloat32x4 {
		return nil, fmt.Errorf("color image from %s target: %w", t.Format(), ErrFormatMismatch)
	}
	w, h := t.Width(), t.Height()
	if dst == nil || dst.Rect != image.Rect(0, 0, w, h) {
		dst = image.NewNRGBA(image.Rect(0, 0, w, h))
	}
	for y := 0; y < h; y++ {
		row := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			p := t.RGBA(x, h-1-y)
			row[x*4+0] = to8(p[0])
			row[x*4+1] = to8(p[1])
			row[x*4+2] = to8(p[2])
			row[x*4+3] = to8(p[3])
		}
	}
	return dst, nil
}

// DepthImage converts a FormatFloat32 depth target to a 16-bit grayscale
// image. Values are clamped to [0, 1], so normalized device depth maps
// directly onto the full range.
//
// Parameters:
//   - t: the depth target
//
// Returns:
//   - *image.Gray16: the converted image
//   - error: ErrFormatMismatch if t is not a single-channel float target
func DepthImage(t Source) (*image.Gray16, error) {
	if t.Format() != FormatFloat32 {
		return nil, fmt.Errorf("depth image from %s target: %w", t.Format(), ErrFormatMismatch)
	}
	w, h := t.Width(), t.Height()
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := common.Clamp01(t.Float(x, h-1-y))
			img.SetGray16(x, y, color.Gray16{Y: uint16(d*65535 + 0.5)})
		}
	}
	return img, nil
}

// IDImage renders a FormatInt32 id target in false color. Negative ids are
// background and become fully transparent.
//
// Parameters:
//   - t: the id target
//
// Returns:
//   - *image.NRGBA: the converted image
//   - error: ErrFormatMismatch if t is not an int target
func IDImage(t Source) (*image.NRGBA, error) {
	if t.Format() != FormatInt32 {
		return nil, fmt.Errorf("id image from %s target: %w", t.Format(), ErrFormatMismatch)
	}
	w, h := t.Width(), t.Height()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			id := t.Int(x, h-1-y)
			if id < 0 {
				continue
			}
			img.SetNRGBA(x, y, IDColor(id))
		}
	}
	return img, nil
}

// IDColor maps a primitive id to a stable, well-spread opaque color.
func IDColor(id int32) color.NRGBA {
	// Knuth multiplicative hash spreads consecutive ids across hues.
	h := uint32(id) * 2654435761
	return color.NRGBA{R: uint8(h >> 24), G: uint8(h >> 16), B: uint8(h >> 8), A: 255}
}

func to8(v float32) uint8 {
	return uint8(common.Clamp01(v)*255 + 0.5)
}

// EncodePNG writes a color target as PNG.
func EncodePNG(w io.Writer, t Source) error {
	img, err := ColorImage(t)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// EncodeDepthTIFF writes a depth target as a 16-bit deflate-compressed TIFF.
func EncodeDepthTIFF(w io.Writer, t Source) error {
	img, err := DepthImage(t)
	if err != nil {
		return err
	}
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Save writes any supported target to a file. The encoding is chosen by the
// file extension: .png, .bmp, .tif or .tiff. Color targets become RGBA,
// depth targets 16-bit gray and id targets false color.
//
// Parameters:
//   - path: destination file
//   - t: the target to export
//
// Returns:
//   - error: an error if the extension is unsupported or writing fails
func Save(path string, t Source) error {
	img, err := toImage(t)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	var encode func(io.Writer) error
	switch ext {
	case ".png":
		encode = func(w io.Writer) error { return png.Encode(w, img) }
	case ".bmp":
		encode = func(w io.Writer) error { return bmp.Encode(w, img) }
	case ".tif", ".tiff":
		encode = func(w io.Writer) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}
	default:
		return fmt.Errorf("save %s: extension %q not supported", path, ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := encode(bw); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

func toImage(t Source) (image.Image, error) {
	switch t.Format() {
	case FormatFloat32x4:
		return ColorImage(t)
	case FormatFloat32:
		return DepthImage(t)
	case FormatInt32:
		return IDImage(t)
	default:
		return nil, fmt.Errorf("export %s target: %w", t.Format(), ErrFormatMismatch)
	}
}
