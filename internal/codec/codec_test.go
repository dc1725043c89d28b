package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.jpg", JPEG},
		{"a.JPEG", JPEG},
		{"dir/a.png", PNG},
		{"a.bmp", BMP},
		{"a.tiff", TIFF},
		{"a.webp", WebP},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	_, err := FormatFromPath("a.gif")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestMode(t *testing.T) {
	opaque := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 0xff
	}
	transparent := image.NewNRGBA(image.Rect(0, 0, 2, 2))

	assert.Equal(t, ModeRGB, Wrap(opaque).Mode())
	assert.Equal(t, ModeRGBA, Wrap(transparent).Mode())
	assert.Equal(t, ModeP, Wrap(image.NewPaletted(image.Rect(0, 0, 1, 1), color.Palette{color.Black})).Mode())
	assert.Equal(t, ModeL, Wrap(image.NewGray(image.Rect(0, 0, 1, 1))).Mode())
	assert.Equal(t, ModeRGB, Wrap(image.NewYCbCr(image.Rect(0, 0, 1, 1), image.YCbCrSubsampleRatio420)).Mode())

	assert.True(t, ModeRGBA.HasAlphaOrPalette())
	assert.True(t, ModeP.HasAlphaOrPalette())
	assert.False(t, ModeRGB.HasAlphaOrPalette())
}

func TestConvertDropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 10})

	img, err := Wrap(src).Convert(ModeRGB)
	require.NoError(t, err)
	assert.Equal(t, ModeRGB, img.Mode())

	got := img.(*imagingImage).img.(*image.NRGBA).NRGBAAt(0, 0)
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, got)

	_, err = Wrap(src).Convert(ModeCMYK)
	assert.Error(t, err)
}

func TestResizeToFit(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"within bounds", 200, 100, 200, 100},
		{"exact bounds", 300, 200, 300, 200},
		{"landscape too wide", 600, 400, 300, 200},
		{"wide strip", 900, 100, 300, 33},
		{"portrait too tall", 100, 400, 50, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := Wrap(image.NewNRGBA(image.Rect(0, 0, tt.w, tt.h))).ResizeToFit(300, 200)
			w, h := img.Size()
			assert.Equal(t, tt.wantW, w)
			assert.InDelta(t, tt.wantH, h, 1)
			assert.LessOrEqual(t, w, 300)
			assert.LessOrEqual(t, h, 200)
		})
	}
}

func TestDecodeAndEncode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.png")
	src := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	writePNG(t, path, src)

	img, err := NewImaging(false).Decode(path)
	require.NoError(t, err)
	w, h := img.Size()
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)

	var buf bytes.Buffer
	require.NoError(t, img.Encode(&buf, JPEG, 85))
	decoded, err := jpeg.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 40, decoded.Bounds().Dx())

	buf.Reset()
	require.NoError(t, img.Encode(&buf, PNG, 85))
	_, err = png.Decode(&buf)
	require.NoError(t, err)

	err = img.Encode(&bytes.Buffer{}, WebP, 85)
	assert.ErrorIs(t, err, ErrNoEncoder)
}

func TestDecode_NotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not really a jpeg"), 0644))

	_, err := NewImaging(false).Decode(path)
	assert.Error(t, err)
}
