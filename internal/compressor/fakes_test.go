package compressor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"image-compressor-go/internal/codec"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// fakeImage encodes to a fixed number of bytes so tests control the ratio.
type fakeImage struct {
	w, h      int
	mode      codec.ColorMode
	payload   int
	encErr    error
	panics    bool
	converted bool
	codec     *fakeCodec
}

func (f *fakeImage) Size() (int, int)      { return f.w, f.h }
func (f *fakeImage) Mode() codec.ColorMode { return f.mode }

func (f *fakeImage) Convert(mode codec.ColorMode) (codec.Image, error) {
	c := *f
	c.mode = mode
	c.converted = true
	return &c, nil
}

func (f *fakeImage) ResizeToFit(maxW, maxH int) codec.Image {
	c := *f
	if float64(f.w)/float64(f.h) > float64(maxW)/float64(maxH) {
		c.w, c.h = maxW, f.h*maxW/f.w
	} else {
		c.w, c.h = f.w*maxH/f.h, maxH
	}
	return &c
}

func (f *fakeImage) Encode(w io.Writer, _ codec.Format, _ int) error {
	if f.panics {
		panic("encoder exploded")
	}
	if f.codec != nil {
		f.codec.mu.Lock()
		f.codec.encoded = f
		f.codec.mu.Unlock()
	}
	if f.encErr != nil {
		return f.encErr
	}
	_, err := w.Write(bytes.Repeat([]byte{'x'}, f.payload))
	return err
}

type fakeCodec struct {
	mu      sync.Mutex
	img     *fakeImage
	err     error
	decoded []string
	encoded *fakeImage
}

func (c *fakeCodec) Decode(path string) (codec.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decoded = append(c.decoded, path)
	if c.err != nil {
		return nil, c.err
	}
	img := *c.img
	img.codec = c
	return &img, nil
}

// recordingReporter collects reported outcomes.
type recordingReporter struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recordingReporter) ReportOutcome(out Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, out)
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

type fakeMarker struct {
	marked map[string]bool
	writes []string
}

func (m *fakeMarker) IsMarked(path string) bool { return m.marked[path] }
func (m *fakeMarker) Mark(path string) error {
	m.writes = append(m.writes, path)
	return nil
}
func (m *fakeMarker) Close() error { return nil }

func writeBytes(t *testing.T, path string, n int) []byte {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, data, 0644))
	return data
}

func noise(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8((x * 255) / w),
				B: uint8((y * 255) / h),
				A: 0xff,
			})
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 100}))
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}
