package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	jobqueue "github.com/okian/shotlab/internal/adapters/mq/queue"
	"github.com/okian/shotlab/internal/domain/report"
	"github.com/okian/shotlab/pkg/logger"
	"github.com/okian/shotlab/pkg/metrics"
)

// BatchResult is the outcome for one request of a batch, in input order.
type BatchResult struct {
	Index  int
	JobID  string
	Report report.Report
	Err    error
}

type batchItem struct {
	ctx    context.Context //nolint:containedctx // carries the submitter's deadline to the worker
	req    AnalysisRequest
	result BatchResult
	done   chan struct{}
}

// AnalyzeBatch fans the requests out over the worker pool and returns one
// result per request in input order. A failing request does not fail the
// batch; only an empty or oversized batch is rejected as a whole.
func (s *Service) AnalyzeBatch(ctx context.Context, reqs []AnalysisRequest) ([]BatchResult, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidRequest)
	}
	if len(reqs) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: %w: %d requests exceeds limit of %d", ErrInvalidRequest, ErrBatchTooLarge, len(reqs), s.maxBatchSize)
	}

	s.counters.batches.Add(1)
	metrics.RecordBatchSize(len(reqs))
	batchID := uuid.NewString()
	s.logger.Debug(ctx, "batch submitted", logger.String("batch_id", batchID), logger.Int("size", len(reqs)))

	items := make([]*batchItem, len(reqs))
	for i, req := range reqs {
		it := &batchItem{
			ctx:  ctx,
			req:  req,
			done: make(chan struct{}),
		}
		it.result = BatchResult{Index: i, JobID: batchID + "-" + strconv.Itoa(i)}
		items[i] = it

		err := s.jobs.Enqueue(ctx, jobqueue.Job{ID: it.result.JobID, Index: i, Payload: it})
		if err != nil {
			if errors.Is(err, jobqueue.ErrFull) || errors.Is(err, jobqueue.ErrClosed) {
				s.counters.failed.Add(1)
				metrics.RecordAnalysisFailed("queue_rejected")
			}
			it.result.Err = fmt.Errorf("enqueue job %s: %w", it.result.JobID, err)
			close(it.done)
		}
	}

	results := make([]BatchResult, len(items))
	for i, it := range items {
		select {
		case <-it.done:
			results[i] = it.result
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return results, nil
}

func (s *Service) processJob(_ context.Context, job jobqueue.Job) error {
	it, ok := job.Payload.(*batchItem)
	if !ok {
		return fmt.Errorf("unexpected job payload %T", job.Payload)
	}
	defer close(it.done)

	if err := it.ctx.Err(); err != nil {
		it.result.Err = err
		return err
	}
	rep, err := s.analyze(it.ctx, it.req)
	it.result.Report = rep
	it.result.Err = err
	return err
}
