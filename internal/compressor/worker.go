package compressor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/metadata"
	"image-compressor-go/internal/statistics"

	"github.com/sirupsen/logrus"
)

// WorkerOptions holds the optional EXIF marker policy of a Worker.
type WorkerOptions struct {
	Marker     metadata.Marker
	SkipMarked bool
	MarkOutput bool
}

// Worker compresses one file at a time through a codec and applies the
// keep-original policy.
type Worker struct {
	codec    codec.Codec
	reporter Reporter
	logger   *logrus.Entry
	opts     WorkerOptions
}

// NewWorker returns a Worker. reporter may be nil.
func NewWorker(c codec.Codec, reporter Reporter, log *logrus.Entry, opts WorkerOptions) *Worker {
	return &Worker{
		codec:    c,
		reporter: reporter,
		logger:   log,
		opts:     opts,
	}
}

// Process compresses task.InputPath into task.OutputPath. Errors and panics
// are returned as a failed Outcome; every call reports exactly one Outcome.
func (w *Worker) Process(task Task) (out Outcome) {
	out = Outcome{
		InputPath:  task.InputPath,
		OutputPath: task.OutputPath,
		StartedAt:  time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			out = fail(out, "compress", ErrEncode, fmt.Errorf("panic: %v", r))
		}
		out.FinishedAt = time.Now()
		w.log(out)
		if w.reporter != nil {
			w.reporter.ReportOutcome(out)
		}
	}()

	return w.compress(task, out)
}

func (w *Worker) compress(task Task, out Outcome) Outcome {
	info, err := os.Stat(task.InputPath)
	if err != nil {
		return fail(out, "stat", ErrIO, err)
	}
	out.OriginalSize = info.Size()

	if w.opts.SkipMarked && w.opts.Marker != nil && w.opts.Marker.IsMarked(task.InputPath) {
		return w.keepOriginal(task, out, ReasonMarked)
	}

	format, err := codec.FormatFromPath(task.OutputPath)
	if err != nil {
		return fail(out, "format", ErrEncode, err)
	}

	img, err := w.codec.Decode(task.InputPath)
	if err != nil {
		return fail(out, "decode", ErrDecode, err)
	}

	width, height := img.Size()
	out.OriginalWidth, out.OriginalHeight = width, height

	// Transparency is discarded: alpha and palette images become opaque RGB.
	if img.Mode().HasAlphaOrPalette() {
		img, err = img.Convert(codec.ModeRGB)
		if err != nil {
			return fail(out, "convert", ErrEncode, err)
		}
	}

	if width > task.MaxWidth || height > task.MaxHeight {
		img = img.ResizeToFit(task.MaxWidth, task.MaxHeight)
		out.Resized = true
	}
	out.FinalWidth, out.FinalHeight = img.Size()

	if err := os.MkdirAll(filepath.Dir(task.OutputPath), 0755); err != nil {
		return fail(out, "mkdir", ErrIO, err)
	}

	tmp, err := createTemp(task.OutputPath, info.Mode().Perm())
	if err != nil {
		return fail(out, "create", ErrIO, err)
	}
	tmpPath := tmp.Name()

	encErr := img.Encode(tmp, format, task.Quality)
	closeErr := tmp.Close()
	if encErr != nil {
		os.Remove(tmpPath)
		if errors.Is(encErr, codec.ErrNoEncoder) {
			return w.keepOriginal(task, out, ReasonNoEncoder)
		}
		return fail(out, "encode", ErrEncode, encErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fail(out, "write", ErrIO, closeErr)
	}

	if w.opts.MarkOutput && w.opts.Marker != nil && format == codec.JPEG {
		if err := w.opts.Marker.Mark(tmpPath); err != nil {
			logger.WithFileOperation(w.logger, task.InputPath, "mark").Warnf("EXIF marker not written: %v", err)
		}
	}

	tmpInfo, err := os.Stat(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return fail(out, "stat", ErrIO, err)
	}
	size := tmpInfo.Size()
	ratio := statistics.Ratio(out.OriginalSize, size)

	if ratio <= task.MinCompression {
		os.Remove(tmpPath)
		out.AttemptedSize = size
		out.AttemptedRatio = ratio
		reason := ReasonBelowThreshold
		if ratio <= 0 {
			reason = ReasonLarger
		}
		return w.keepOriginal(task, out, reason)
	}

	if err := os.Rename(tmpPath, task.OutputPath); err != nil {
		os.Remove(tmpPath)
		return fail(out, "rename", ErrIO, err)
	}

	out.Success = true
	out.Action = ActionCompressed
	out.FinalSize = size
	out.Ratio = ratio
	return out
}

// keepOriginal places the original bytes at the output path and reports the
// file as skipped: final size equals original size and the ratio is 0.
func (w *Worker) keepOriginal(task Task, out Outcome, reason string) Outcome {
	if !samePath(task.InputPath, task.OutputPath) {
		if err := os.MkdirAll(filepath.Dir(task.OutputPath), 0755); err != nil {
			return fail(out, "mkdir", ErrIO, err)
		}
		if err := copyFile(task.InputPath, task.OutputPath); err != nil {
			return fail(out, "copy", ErrIO, err)
		}
	}

	out.Success = true
	out.Action = ActionSkipped
	out.FinalSize = out.OriginalSize
	out.Ratio = 0
	out.Resized = false
	out.FinalWidth, out.FinalHeight = out.OriginalWidth, out.OriginalHeight
	out.Reason = reason
	return out
}

func (w *Worker) log(out Outcome) {
	entry := logger.WithFileOperation(w.logger, out.InputPath, string(out.Action)).WithFields(logrus.Fields{
		"original_size": out.OriginalSize,
		"final_size":    out.FinalSize,
		"ratio":         out.Ratio,
		"duration_ms":   out.Duration().Milliseconds(),
	})
	switch out.Action {
	case ActionFailed:
		entry.WithField("stage", out.Operation).Errorf("Compression failed: %v", out.Err)
	case ActionSkipped:
		entry.Infof("Original kept: %s", out.Reason)
	default:
		entry.Info("Image compressed")
	}
}
