package statistics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics accumulates the run summary of a compression batch.
type Statistics struct {
	TotalFiles int64
	Succeeded  int64
	Failed     int64
	Compressed int64
	Skipped    int64
	Resized    int64

	TotalOriginalBytes int64
	TotalFinalBytes    int64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Errors []StatError

	mutex sync.RWMutex
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// Summary is an immutable copy of the run statistics.
type Summary struct {
	TotalFiles         int64
	Succeeded          int64
	Failed             int64
	Compressed         int64
	Skipped            int64
	Resized            int64
	TotalOriginalBytes int64
	TotalFinalBytes    int64
	Duration           time.Duration
}

// NewStatistics returns a new Statistics instance for a run over total files.
func NewStatistics(total int) *Statistics {
	return &Statistics{
		TotalFiles: int64(total),
		StartTime:  time.Now(),
		Errors:     make([]StatError, 0),
	}
}

// RecordCompressed accounts for a file whose compressed version was kept.
func (s *Statistics) RecordCompressed(original, final int64, resized bool) {
	atomic.AddInt64(&s.Succeeded, 1)
	atomic.AddInt64(&s.Compressed, 1)
	atomic.AddInt64(&s.TotalOriginalBytes, original)
	atomic.AddInt64(&s.TotalFinalBytes, final)
	if resized {
		atomic.AddInt64(&s.Resized, 1)
	}
}

// RecordSkipped accounts for a file whose original bytes were kept.
func (s *Statistics) RecordSkipped(original int64) {
	atomic.AddInt64(&s.Succeeded, 1)
	atomic.AddInt64(&s.Skipped, 1)
	atomic.AddInt64(&s.TotalOriginalBytes, original)
	atomic.AddInt64(&s.TotalFinalBytes, original)
}

// RecordFailed accounts for a file that could not be processed.
func (s *Statistics) RecordFailed(filePath, operation, errorMsg string) {
	atomic.AddInt64(&s.Failed, 1)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize records the end of the run.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// Snapshot returns a copy of the current counters.
func (s *Statistics) Snapshot() Summary {
	s.mutex.RLock()
	duration := s.Duration
	s.mutex.RUnlock()

	return Summary{
		TotalFiles:         atomic.LoadInt64(&s.TotalFiles),
		Succeeded:          atomic.LoadInt64(&s.Succeeded),
		Failed:             atomic.LoadInt64(&s.Failed),
		Compressed:         atomic.LoadInt64(&s.Compressed),
		Skipped:            atomic.LoadInt64(&s.Skipped),
		Resized:            atomic.LoadInt64(&s.Resized),
		TotalOriginalBytes: atomic.LoadInt64(&s.TotalOriginalBytes),
		TotalFinalBytes:    atomic.LoadInt64(&s.TotalFinalBytes),
		Duration:           duration,
	}
}

// OverallRatio returns the compression ratio over all successful files.
func (s Summary) OverallRatio() float64 {
	return Ratio(s.TotalOriginalBytes, s.TotalFinalBytes)
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}

// Ratio returns the percent size reduction from original to final bytes.
// Growth yields a negative ratio; an empty original yields 0.
func Ratio(original, final int64) float64 {
	if original <= 0 {
		return 0
	}
	return (1 - float64(final)/float64(original)) * 100
}
