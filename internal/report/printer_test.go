package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"image-compressor-go/internal/compressor"
	"image-compressor-go/internal/statistics"

	"github.com/stretchr/testify/assert"
)

func TestFormatOutcome(t *testing.T) {
	tests := []struct {
		name string
		out  compressor.Outcome
		want []string
		not  []string
	}{
		{
			name: "compressed with resize",
			out: compressor.Outcome{
				Success: true, Action: compressor.ActionCompressed,
				InputPath: "in/a.png", OutputPath: "out/a.png",
				OriginalSize: 2048, FinalSize: 1024, Ratio: 50,
				Resized: true, OriginalWidth: 3000, OriginalHeight: 2000, FinalWidth: 1620, FinalHeight: 1080,
			},
			want: []string{"✓ a.png -> a.png", "Original: 2.0 KB", "Compressed: 1.0 KB", "Ratio: 50.0%", "Resized: 3000x2000 -> 1620x1080"},
		},
		{
			name: "compressed without resize",
			out: compressor.Outcome{
				Success: true, Action: compressor.ActionCompressed,
				InputPath: "a.jpg", OutputPath: "b.jpg", OriginalSize: 1024, FinalSize: 512, Ratio: 50,
			},
			want: []string{"✓ a.jpg -> b.jpg"},
			not:  []string{"Resized"},
		},
		{
			name: "below threshold",
			out: compressor.Outcome{
				Success: true, Action: compressor.ActionSkipped,
				InputPath: "a.jpg", OutputPath: "a.jpg", OriginalSize: 1024, FinalSize: 1024,
				AttemptedSize: 1003, AttemptedRatio: 2, Reason: compressor.ReasonBelowThreshold,
			},
			want: []string{"⚠ a.jpg -> a.jpg (skipped)", "Ratio: 2.0%", "Reason: " + compressor.ReasonBelowThreshold},
		},
		{
			name: "larger",
			out: compressor.Outcome{
				Success: true, Action: compressor.ActionSkipped,
				InputPath: "a.jpg", OutputPath: "a.jpg", OriginalSize: 1024, FinalSize: 1024,
				Reason: compressor.ReasonLarger,
			},
			want: []string{"Kept: 1.0 KB", "Reason: " + compressor.ReasonLarger},
		},
		{
			name: "failed",
			out: compressor.Outcome{
				Action: compressor.ActionFailed, InputPath: "dir/bad.jpg",
				Err: errors.New("decode error: unexpected EOF"),
			},
			want: []string{"✗ bad.jpg failed: decode error: unexpected EOF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatOutcome(tt.out)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, n := range tt.not {
				assert.NotContains(t, got, n)
			}
			assert.True(t, strings.HasSuffix(got, "\n\n"))
		})
	}
}

func TestPrinter_BlocksDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(Options{Writer: &buf})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.ReportOutcome(compressor.Outcome{
				Success:      true,
				Action:       compressor.ActionCompressed,
				InputPath:    fmt.Sprintf("f%02d.jpg", i),
				OutputPath:   fmt.Sprintf("f%02d.jpg", i),
				OriginalSize: 2048,
				FinalSize:    1024,
				Ratio:        50,
			})
		}(i)
	}
	wg.Wait()

	blocks := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
	assert.Len(t, blocks, 50)
	for _, block := range blocks {
		lines := strings.Split(block, "\n")
		if assert.Len(t, lines, 4) {
			name := strings.Fields(lines[0])[1]
			assert.Equal(t, "✓ "+name+" -> "+name, lines[0])
		}
	}
}

func TestPrinter_HeaderAndSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(Options{Writer: &buf})

	info := RunInfo{
		Files:           3,
		Quality:         85,
		MaxWidth:        1920,
		MaxHeight:       1080,
		OutputDirectory: "images/compressed",
		Workers:         4,
		MinCompression:  10,
		StartTime:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	p.PrintHeader(info)

	stats := statistics.NewStatistics(3)
	stats.RecordCompressed(2*1024*1024, 1024*1024, true)
	stats.RecordSkipped(1024 * 1024)
	stats.RecordFailed("bad.jpg", "decode", "unexpected EOF")
	stats.Finalize()
	p.PrintSummary(stats, info)
	p.Finish()

	got := buf.String()
	for _, want := range []string{
		"Found 3 image files",
		"Quality: 85",
		"Max size: 1920x1080",
		"Output directory: images/compressed",
		"Workers: 4",
		"Minimum compression: 10.0%",
		"Started at: 2024-05-01 12:00:00",
		"Succeeded: 2/3",
		"Compressed: 1 files",
		"Skipped: 1 files",
		"Failed: 1 files",
		"Total original size: 3.0 MB",
		"Total final size: 2.0 MB",
		"Overall compression: 33.3%",
		"Compressed files saved to: images/compressed",
		"more than 10.0%",
		"bad.jpg",
	} {
		assert.Contains(t, got, want)
	}
}

func TestPrinter_SummaryAllFailed(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(Options{Writer: &buf})

	stats := statistics.NewStatistics(2)
	stats.RecordFailed("a.jpg", "decode", "boom")
	stats.RecordFailed("b.jpg", "decode", "boom")
	stats.Finalize()
	p.PrintSummary(stats, RunInfo{Overwrite: true})

	got := buf.String()
	assert.Contains(t, got, "Succeeded: 0/2")
	assert.Contains(t, got, "Total original size: 0.0 MB")
	assert.NotContains(t, got, "Overall compression")
	assert.NotContains(t, got, "saved to")
	assert.Contains(t, got, "--min-compression")
}

func TestPrinter_ProgressBarWritesElsewhere(t *testing.T) {
	var out, bar bytes.Buffer
	p := NewPrinter(Options{Writer: &out, Progress: true, ProgressWriter: &bar, Total: 2})

	p.ReportOutcome(compressor.Outcome{Action: compressor.ActionFailed, InputPath: "a.jpg", Err: errors.New("x")})
	p.Message("hello")
	p.Finish()

	assert.Contains(t, out.String(), "✗ a.jpg failed: x")
	assert.Contains(t, out.String(), "hello\n")
	assert.NotContains(t, out.String(), "Compressing")
	assert.NotEmpty(t, bar.String())
}
