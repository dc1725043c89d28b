// Package report renders per-file outcomes and the run summary to the console.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"image-compressor-go/internal/compressor"
	"image-compressor-go/internal/statistics"

	"github.com/schollz/progressbar/v3"
)

const separator = "--------------------------------------------------"

// RunInfo describes the parameters of a run for the header and summary.
type RunInfo struct {
	Files           int
	Quality         int
	MaxWidth        int
	MaxHeight       int
	OutputDirectory string
	Overwrite       bool
	Workers         int
	MinCompression  float64
	StartTime       time.Time
}

// Options configures a Printer.
type Options struct {
	// Writer receives outcome blocks and the summary (default os.Stdout).
	Writer io.Writer
	// Progress enables a progress bar over Total files.
	Progress bool
	// ProgressWriter receives the progress bar (default os.Stderr).
	ProgressWriter io.Writer
	Total          int
}

// Printer writes whole outcome blocks under a single lock so concurrent
// workers never interleave their lines. It implements compressor.Reporter.
type Printer struct {
	mutex sync.Mutex
	out   io.Writer
	bar   *progressbar.ProgressBar
}

// NewPrinter returns a Printer.
func NewPrinter(opts Options) *Printer {
	out := opts.Writer
	if out == nil {
		out = os.Stdout
	}

	p := &Printer{out: out}

	if opts.Progress && opts.Total > 0 {
		barWriter := opts.ProgressWriter
		if barWriter == nil {
			barWriter = os.Stderr
		}
		p.bar = progressbar.NewOptions(
			opts.Total,
			progressbar.OptionSetWriter(barWriter),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("file"),
			progressbar.OptionSetDescription("Compressing"),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(barWriter)
			}),
		)
	}

	return p
}

// ReportOutcome prints the block for one finished task and advances the
// progress bar.
func (p *Printer) ReportOutcome(out compressor.Outcome) {
	block := FormatOutcome(out)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bar != nil {
		_ = p.bar.Clear()
	}
	fmt.Fprint(p.out, block)
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

// PrintHeader prints the run parameters before any task starts.
func (p *Printer) PrintHeader(info RunInfo) {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d image files\n", info.Files)
	fmt.Fprintf(&b, "Quality: %d\n", info.Quality)
	fmt.Fprintf(&b, "Max size: %dx%d\n", info.MaxWidth, info.MaxHeight)
	if info.Overwrite {
		b.WriteString("Output: overwrite in place\n")
	} else {
		fmt.Fprintf(&b, "Output directory: %s\n", info.OutputDirectory)
	}
	fmt.Fprintf(&b, "Workers: %d\n", info.Workers)
	if info.MinCompression > 0 {
		fmt.Fprintf(&b, "Minimum compression: %.1f%%\n", info.MinCompression)
	}
	fmt.Fprintf(&b, "Started at: %s\n", info.StartTime.Format("2006-01-02 15:04:05"))
	b.WriteString(separator + "\n")

	p.write(b.String())
}

// PrintSummary prints the final run summary. It is printed even when every
// task failed.
func (p *Printer) PrintSummary(stats *statistics.Statistics, info RunInfo) {
	sum := stats.Snapshot()

	var b strings.Builder
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Done! Succeeded: %d/%d\n", sum.Succeeded, sum.TotalFiles)
	fmt.Fprintf(&b, "Compressed: %d files\n", sum.Compressed)
	fmt.Fprintf(&b, "Skipped: %d files\n", sum.Skipped)
	if sum.Resized > 0 {
		fmt.Fprintf(&b, "Resized: %d files\n", sum.Resized)
	}
	if sum.Failed > 0 {
		fmt.Fprintf(&b, "Failed: %d files\n", sum.Failed)
	}
	fmt.Fprintf(&b, "Total original size: %.1f MB\n", mb(sum.TotalOriginalBytes))
	fmt.Fprintf(&b, "Total final size: %.1f MB\n", mb(sum.TotalFinalBytes))
	if sum.TotalOriginalBytes > 0 {
		fmt.Fprintf(&b, "Overall compression: %.1f%%\n", sum.OverallRatio())
	}
	fmt.Fprintf(&b, "Elapsed: %s\n", sum.Duration.Round(time.Millisecond))
	if !info.Overwrite {
		fmt.Fprintf(&b, "Compressed files saved to: %s\n", info.OutputDirectory)
	}

	if info.MinCompression > 0 {
		fmt.Fprintf(&b, "\nPolicy: only files that shrink by more than %.1f%% are compressed\n", info.MinCompression)
		b.WriteString("  all other files are kept as they are\n")
	} else {
		b.WriteString("\nPolicy: every file that gets smaller is compressed\n")
		b.WriteString("  set --min-compression to skip files with marginal savings\n")
	}

	if sum.Failed > 0 {
		b.WriteString("\n" + stats.GetErrorSummary())
	}

	p.write(b.String())
}

// Message prints a single line without disturbing the progress bar.
func (p *Printer) Message(format string, args ...interface{}) {
	p.write(fmt.Sprintf(format, args...) + "\n")
}

// Finish completes the progress bar, if any.
func (p *Printer) Finish() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func (p *Printer) write(s string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bar != nil {
		_ = p.bar.Clear()
	}
	fmt.Fprint(p.out, s)
	if p.bar != nil {
		_ = p.bar.RenderBlank()
	}
}

// FormatOutcome renders the console block for one outcome.
func FormatOutcome(out compressor.Outcome) string {
	in := filepath.Base(out.InputPath)
	dst := filepath.Base(out.OutputPath)

	var b strings.Builder
	switch out.Action {
	case compressor.ActionCompressed:
		fmt.Fprintf(&b, "✓ %s -> %s\n", in, dst)
		fmt.Fprintf(&b, "  Original: %.1f KB\n", kb(out.OriginalSize))
		fmt.Fprintf(&b, "  Compressed: %.1f KB\n", kb(out.FinalSize))
		fmt.Fprintf(&b, "  Ratio: %.1f%%\n", out.Ratio)
		if out.Resized {
			fmt.Fprintf(&b, "  Resized: %dx%d -> %dx%d\n",
				out.OriginalWidth, out.OriginalHeight, out.FinalWidth, out.FinalHeight)
		}
	case compressor.ActionSkipped:
		fmt.Fprintf(&b, "⚠ %s -> %s (skipped)\n", in, dst)
		fmt.Fprintf(&b, "  Original: %.1f KB\n", kb(out.OriginalSize))
		if out.Reason == compressor.ReasonBelowThreshold {
			fmt.Fprintf(&b, "  Attempted: %.1f KB\n", kb(out.AttemptedSize))
			fmt.Fprintf(&b, "  Ratio: %.1f%%\n", out.AttemptedRatio)
		} else {
			fmt.Fprintf(&b, "  Kept: %.1f KB\n", kb(out.FinalSize))
		}
		if out.Reason != "" {
			fmt.Fprintf(&b, "  Reason: %s\n", out.Reason)
		}
	default:
		msg := "unknown error"
		if out.Err != nil {
			msg = out.Err.Error()
		}
		fmt.Fprintf(&b, "✗ %s failed: %s\n", in, msg)
	}
	b.WriteString("\n")
	return b.String()
}

func kb(n int64) float64 { return float64(n) / 1024 }
func mb(n int64) float64 { return float64(n) / 1024 / 1024 }
