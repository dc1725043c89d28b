// Package metadata reads and writes the EXIF Software marker that identifies
// images already processed by the compressor.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// ErrExiftoolUnavailable is returned by Mark when the exiftool binary could not be started.
var ErrExiftoolUnavailable = errors.New("exiftool is not available")

const softwareField = "Software"

// Marker tags compressed outputs and recognises inputs that already carry the tag.
type Marker interface {
	IsMarked(path string) bool
	Mark(path string) error
	Close() error
}

// EXIFMarker reads the Software tag with goexif and falls back to exiftool,
// which is also used to write it.
type EXIFMarker struct {
	logger *logrus.Entry
	tag    string
	et     *exiftool.Exiftool
	mutex  sync.Mutex
}

// NewEXIFMarker returns a marker using tag as the Software value. A missing
// exiftool binary is logged; reads then rely on goexif alone and Mark fails.
func NewEXIFMarker(logger *logrus.Entry, tag string) *EXIFMarker {
	m := &EXIFMarker{logger: logger, tag: tag}
	et, err := exiftool.NewExiftool()
	if err != nil {
		logger.Warnf("exiftool unavailable, EXIF marking disabled: %v", err)
		return m
	}
	m.et = et
	return m
}

// IsMarked reports whether the Software tag of the file contains the marker.
func (m *EXIFMarker) IsMarked(path string) bool {
	if hasSoftwareTag(path, m.tag) {
		return true
	}
	if m.et == nil {
		return false
	}

	m.mutex.Lock()
	files := m.et.ExtractMetadata(path)
	m.mutex.Unlock()

	if len(files) == 0 || files[0].Err != nil {
		return false
	}
	sw, ok := files[0].Fields[softwareField].(string)
	return ok && strings.Contains(sw, m.tag)
}

// Mark writes the marker into the Software tag of the file in place.
func (m *EXIFMarker) Mark(path string) error {
	if m.et == nil {
		return ErrExiftoolUnavailable
	}

	fm := exiftool.FileMetadata{File: path, Fields: map[string]interface{}{}}
	fm.SetString(softwareField, m.tag)
	files := []exiftool.FileMetadata{fm}

	m.mutex.Lock()
	m.et.WriteMetadata(files)
	m.mutex.Unlock()

	if files[0].Err != nil {
		return fmt.Errorf("write %s tag: %w", softwareField, files[0].Err)
	}
	m.logger.WithField("file", path).Debug("EXIF marker written")
	return nil
}

// Close stops the exiftool process if one was started.
func (m *EXIFMarker) Close() error {
	if m.et == nil {
		return nil
	}
	return m.et.Close()
}

// hasSoftwareTag checks the EXIF Software tag of JPEG and TIFF files with goexif.
func hasSoftwareTag(path, tag string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".tif", ".tiff":
	default:
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return false
	}
	t, err := x.Get(exif.Software)
	if err != nil {
		return false
	}
	val, err := t.StringVal()
	if err != nil {
		return false
	}
	return strings.Contains(val, tag)
}
