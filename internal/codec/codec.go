// Package codec adapts the imaging library to the narrow decode, resize and
// encode contract the compressor needs.
package codec

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	// Registers the WebP decoder with image.Decode, which imaging uses.
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupportedFormat is returned for file extensions the codec cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrNoEncoder is returned when a format can be decoded but not encoded.
	ErrNoEncoder = errors.New("no encoder for format")
)

// ColorMode describes how an image stores its colour channels.
type ColorMode string

const (
	ModeRGB  ColorMode = "RGB"
	ModeRGBA ColorMode = "RGBA"
	ModeP    ColorMode = "P"
	ModeL    ColorMode = "L"
	ModeCMYK ColorMode = "CMYK"
)

// HasAlphaOrPalette reports whether the mode must be flattened before a lossy encode.
func (m ColorMode) HasAlphaOrPalette() bool {
	return m == ModeRGBA || m == ModeP
}

// Format is an encodable image file format.
type Format int

const (
	JPEG Format = iota
	PNG
	BMP
	TIFF
	WebP
)

var formatExts = map[string]Format{
	".jpg":  JPEG,
	".jpeg": JPEG,
	".png":  PNG,
	".bmp":  BMP,
	".tif":  TIFF,
	".tiff": TIFF,
	".webp": WebP,
}

// FormatFromPath returns the format implied by the file extension.
func FormatFromPath(path string) (Format, error) {
	f, ok := formatExts[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	return f, nil
}

// String returns the conventional name of the format.
func (f Format) String() string {
	switch f {
	case JPEG:
		return "JPEG"
	case PNG:
		return "PNG"
	case BMP:
		return "BMP"
	case TIFF:
		return "TIFF"
	case WebP:
		return "WebP"
	default:
		return "Unknown"
	}
}

// Image is a decoded image held by the codec.
type Image interface {
	Size() (width, height int)
	Mode() ColorMode
	// Convert returns the image converted to mode. Only ModeRGB is supported.
	Convert(mode ColorMode) (Image, error)
	// ResizeToFit downscales the image to fit within maxWidth x maxHeight,
	// preserving aspect ratio. Images already inside the box are returned as is.
	ResizeToFit(maxWidth, maxHeight int) Image
	// Encode writes the image in format at the given quality with
	// size-optimised settings.
	Encode(w io.Writer, format Format, quality int) error
}

// Codec decodes image files.
type Codec interface {
	Decode(path string) (Image, error)
}

// Imaging is the Codec backed by github.com/disintegration/imaging.
type Imaging struct {
	autoOrient bool
}

// NewImaging returns an imaging based Codec. With autoOrient the EXIF
// orientation tag is applied while decoding.
func NewImaging(autoOrient bool) *Imaging {
	return &Imaging{autoOrient: autoOrient}
}

// Decode opens and decodes the image at path.
func (c *Imaging) Decode(path string) (Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(c.autoOrient))
	if err != nil {
		return nil, err
	}
	return &imagingImage{img: img}, nil
}

type imagingImage struct {
	img image.Image
}

// Wrap exposes an in-memory image through the Image interface.
func Wrap(img image.Image) Image {
	return &imagingImage{img: img}
}

func (i *imagingImage) Size() (int, int) {
	b := i.img.Bounds()
	return b.Dx(), b.Dy()
}

func (i *imagingImage) Mode() ColorMode {
	switch img := i.img.(type) {
	case *image.Paletted:
		return ModeP
	case *image.Gray, *image.Gray16:
		return ModeL
	case *image.CMYK:
		return ModeCMYK
	case *image.YCbCr:
		return ModeRGB
	case interface{ Opaque() bool }:
		if img.Opaque() {
			return ModeRGB
		}
		return ModeRGBA
	default:
		return ModeRGBA
	}
}

func (i *imagingImage) Convert(mode ColorMode) (Image, error) {
	if mode != ModeRGB {
		return nil, fmt.Errorf("convert to %s: not supported", mode)
	}
	// Alpha is dropped, not composited: colour values are kept as they are.
	dst := imaging.Clone(i.img)
	for p := 3; p < len(dst.Pix); p += 4 {
		dst.Pix[p] = 0xff
	}
	return &imagingImage{img: dst}, nil
}

func (i *imagingImage) ResizeToFit(maxWidth, maxHeight int) Image {
	w, h := i.Size()
	if w <= maxWidth && h <= maxHeight {
		return i
	}
	return &imagingImage{img: imaging.Fit(i.img, maxWidth, maxHeight, imaging.Lanczos)}
}

func (i *imagingImage) Encode(w io.Writer, format Format, quality int) error {
	switch format {
	case JPEG:
		return imaging.Encode(w, i.img, imaging.JPEG, imaging.JPEGQuality(quality))
	case PNG:
		return imaging.Encode(w, i.img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case BMP:
		return imaging.Encode(w, i.img, imaging.BMP)
	case TIFF:
		return imaging.Encode(w, i.img, imaging.TIFF)
	case WebP:
		return fmt.Errorf("%w: %s", ErrNoEncoder, format)
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, int(format))
	}
}
