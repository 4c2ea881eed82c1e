// Package queue runs the CPU-bound half of the ingestion pipeline — the
// Feature Extractor's spectral analysis and fingerprinting — on a fixed
// worker pool, so one station's burst of segments never starves the
// others (spec.md §4.3; pattern adapted from the teacher's AudioQueue
// worker pool).
package queue

import (
	"context"
	"runtime"

	"go.uber.org/zap"

	"github.com/zfogg/sidechain/backend/internal/audio"
)

// SegmentJob is one Segment waiting for feature extraction.
type SegmentJob struct {
	Segment audio.Segment
	Result  chan<- audio.Features
}

// SegmentQueue fans submitted segments out across a bounded worker pool
// sized from the host's CPU count, same cap the teacher used for its
// audio worker pool.
type SegmentQueue struct {
	jobs      chan SegmentJob
	workers   int
	extractor *audio.Extractor
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewSegmentQueue(extractor *audio.Extractor, logger *zap.Logger) *SegmentQueue {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &SegmentQueue{
		jobs:      make(chan SegmentJob, 256),
		workers:   workers,
		extractor: extractor,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the worker pool. Safe to call once; callers own the
// queue's lifetime via Stop.
func (q *SegmentQueue) Start() {
	q.logger.Info("segment queue starting", zap.Int("workers", q.workers))
	for i := 0; i < q.workers; i++ {
		go q.worker(i)
	}
}

// Stop cancels outstanding work and closes the job channel. In-flight
// extractions finish; queued-but-unstarted jobs are dropped.
func (q *SegmentQueue) Stop() {
	q.cancel()
	close(q.jobs)
}

// Submit enqueues a segment for extraction, sending the Features to
// result once computed. Submit blocks if the queue is full rather than
// drop a segment silently — callers that can't afford to block should
// select on a timeout around this call.
func (q *SegmentQueue) Submit(seg audio.Segment, result chan<- audio.Features) {
	select {
	case q.jobs <- SegmentJob{Segment: seg, Result: result}:
	case <-q.ctx.Done():
	}
}

func (q *SegmentQueue) worker(id int) {
	for {
		select {
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			features := q.extractor.Extract(job.Segment)
			select {
			case job.Result <- features:
			case <-q.ctx.Done():
				return
			}
		case <-q.ctx.Done():
			return
		}
	}
}
