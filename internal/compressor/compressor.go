package compressor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDirectoryNotFound is returned when the input root does not exist.
	ErrDirectoryNotFound = errors.New("directory not found")
	// ErrDecode marks a file that could not be decoded.
	ErrDecode = errors.New("decode error")
	// ErrEncode marks a file that could not be converted, resized or encoded.
	ErrEncode = errors.New("encode error")
	// ErrIO marks a filesystem failure while reading or writing a file.
	ErrIO = errors.New("io error")
)

// Task describes the compression of one file. It is immutable once created.
type Task struct {
	InputPath      string
	OutputPath     string
	Quality        int
	MaxWidth       int
	MaxHeight      int
	MinCompression float64 // percent
}

// Action is what happened to a file.
type Action string

const (
	ActionCompressed Action = "compressed"
	ActionSkipped    Action = "skipped"
	ActionFailed     Action = "failed"
)

// Reasons reported for skipped files.
const (
	ReasonLarger         = "compressed file was not smaller, original kept"
	ReasonBelowThreshold = "compression ratio below threshold, original kept"
	ReasonNoEncoder      = "no encoder for this format, original kept"
	ReasonMarked         = "already compressed, original kept"
)

// Outcome describes the result of processing a single Task.
type Outcome struct {
	Success    bool
	Action     Action
	InputPath  string
	OutputPath string

	OriginalSize int64
	FinalSize    int64
	Ratio        float64 // percent, 0 when skipped or failed

	// AttemptedSize and AttemptedRatio describe an encode that the threshold
	// policy rejected.
	AttemptedSize  int64
	AttemptedRatio float64

	OriginalWidth  int
	OriginalHeight int
	FinalWidth     int
	FinalHeight    int
	Resized        bool

	Reason    string
	Operation string // stage that failed
	Err       error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the task took.
func (o Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// Processor turns a Task into an Outcome. Implementations never panic out and
// never return without an Outcome.
type Processor interface {
	Process(task Task) Outcome
}

// Reporter receives every Outcome as soon as it is produced.
type Reporter interface {
	ReportOutcome(out Outcome)
}

// FailedOutcome builds the outcome of a task that failed during operation.
func FailedOutcome(task Task, operation string, err error) Outcome {
	now := time.Now()
	return Outcome{
		Action:     ActionFailed,
		InputPath:  task.InputPath,
		OutputPath: task.OutputPath,
		Operation:  operation,
		Err:        err,
		StartedAt:  now,
		FinishedAt: now,
	}
}

func fail(out Outcome, operation string, kind, err error) Outcome {
	out.Success = false
	out.Action = ActionFailed
	out.OriginalSize = 0
	out.FinalSize = 0
	out.Ratio = 0
	out.AttemptedSize = 0
	out.AttemptedRatio = 0
	out.Operation = operation
	out.Err = fmt.Errorf("%w: %s: %w", kind, operation, err)
	return out
}
