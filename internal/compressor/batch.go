package compressor

import (
	"context"
	"fmt"

	"image-compressor-go/internal/statistics"
	"image-compressor-go/internal/workerpool"

	"github.com/sirupsen/logrus"
)

// BatchResult is what a Coordinator run produces. Outcomes are in completion order.
type BatchResult struct {
	Outcomes      []Outcome
	TotalOriginal int64
	TotalFinal    int64
	Stats         *statistics.Statistics
}

// Coordinator runs tasks on a fixed-size worker pool and folds their outcomes.
type Coordinator struct {
	processor Processor
	workers   int
	reporter  Reporter
	logger    *logrus.Entry
}

// NewCoordinator returns a Coordinator running processor on workers slots.
// reporter receives the outcomes the coordinator produces itself (cancelled or
// crashed tasks); it may be nil.
func NewCoordinator(processor Processor, workers int, reporter Reporter, log *logrus.Entry) *Coordinator {
	return &Coordinator{
		processor: processor,
		workers:   workers,
		reporter:  reporter,
		logger:    log,
	}
}

// Run processes every task and returns once all of them have an Outcome.
// Cancelling ctx stops tasks that have not started yet; they are reported as
// failed so that each task still yields exactly one Outcome.
func (c *Coordinator) Run(ctx context.Context, tasks []Task) (*BatchResult, error) {
	pool, err := workerpool.New(c.workers, len(tasks), c.logger)
	if err != nil {
		return nil, err
	}

	stats := statistics.NewStatistics(len(tasks))
	results := make(chan Outcome, len(tasks))

	c.logger.WithField("workers", c.workers).Infof("Submitting %d tasks", len(tasks))
	for _, task := range tasks {
		task := task
		if err := pool.Submit(func() { results <- c.runTask(ctx, task) }); err != nil {
			results <- c.synthesize(task, "submit", err)
		}
	}

	go func() {
		pool.Shutdown()
		close(results)
	}()

	res := &BatchResult{
		Outcomes: make([]Outcome, 0, len(tasks)),
		Stats:    stats,
	}
	for out := range results {
		res.Outcomes = append(res.Outcomes, out)
		switch out.Action {
		case ActionCompressed:
			stats.RecordCompressed(out.OriginalSize, out.FinalSize, out.Resized)
		case ActionSkipped:
			stats.RecordSkipped(out.OriginalSize)
		default:
			msg := "unknown error"
			if out.Err != nil {
				msg = out.Err.Error()
			}
			stats.RecordFailed(out.InputPath, out.Operation, msg)
		}
		if out.Success {
			res.TotalOriginal += out.OriginalSize
			res.TotalFinal += out.FinalSize
		}
	}
	stats.Finalize()

	c.logger.WithFields(logrus.Fields{
		"total_original": res.TotalOriginal,
		"total_final":    res.TotalFinal,
	}).Infof("Batch finished: %d outcomes", len(res.Outcomes))
	return res, nil
}

func (c *Coordinator) runTask(ctx context.Context, task Task) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = c.synthesize(task, "process", fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return c.synthesize(task, "cancel", err)
	}
	return c.processor.Process(task)
}

func (c *Coordinator) synthesize(task Task, operation string, err error) Outcome {
	out := FailedOutcome(task, operation, err)
	if c.reporter != nil {
		c.reporter.ReportOutcome(out)
	}
	return out
}
