package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vanshika/tunetraits/internal/domain"
)

// TaskError accumulates the per-respondent failures of a bulk ingestion.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d respondents failed:", len(e.Errors))
	for _, err := range e.Errors {
		b.WriteString(" ")
		b.WriteString(err.Error())
		b.WriteString(";")
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *TaskError) Unwrap() []error {
	return e.Errors
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// BulkIngestor replays recorded respondent sessions through the collector
// using a worker pool.
type BulkIngestor struct {
	collector *Collector
	workers   int
}

// NewBulkIngestor creates a new BulkIngestor instance with the provided concurrency.
func NewBulkIngestor(collector *Collector, workers int) *BulkIngestor {
	if workers <= 0 {
		workers = 4
	}
	return &BulkIngestor{
		collector: collector,
		workers:   workers,
	}
}

// IngestRespondents replays every respondent concurrently. Stages of one
// respondent run in order: demographics, survey, snapshots.
func (bi *BulkIngestor) IngestRespondents(ctx context.Context, respondents []RespondentInput) error {
	return bi.run(ctx, len(respondents), func(idx int) error {
		return bi.ingest(ctx, respondents[idx])
	})
}

func (bi *BulkIngestor) ingest(ctx context.Context, in RespondentInput) error {
	if in.Identity == "" {
		in.Identity = domain.NewIdentity()
	}
	s := NewSession(in.Identity, time.Now())

	if in.Demographics != nil {
		if err := bi.collector.SubmitDemographics(ctx, s, in.Demographics); err != nil {
			return fmt.Errorf("respondent %s: %w", in.Identity, err)
		}
	}
	if len(in.Answers) > 0 {
		if _, err := bi.collector.SubmitSurvey(ctx, s, in.Answers); err != nil {
			return fmt.Errorf("respondent %s: %w", in.Identity, err)
		}
	}

	dataTypes := make([]string, 0, len(in.Snapshots))
	for dt := range in.Snapshots {
		dataTypes = append(dataTypes, dt)
	}
	sort.Strings(dataTypes)
	for _, dt := range dataTypes {
		if _, err := bi.collector.MergeSnapshot(ctx, s, dt, in.Snapshots[dt]); err != nil {
			return fmt.Errorf("respondent %s: %w", in.Identity, err)
		}
	}
	return nil
}

func (bi *BulkIngestor) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	// One slot per task keeps failures in input order.
	errs := make([]error, total)
	var wg sync.WaitGroup

	for i := 0; i < bi.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexCh {
				errs[idx] = workerFn(idx)
			}
		}()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	var taskErr TaskError
	for _, err := range errs {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
