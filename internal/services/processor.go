package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fotos/internal/models"
)

var ErrProcessorClosed = errors.New("image processor is shut down")

type ResizeJob struct {
	Path   string
	Params models.TranscodeParams
}

type resizeResult struct {
	out Transcoded
	err error
}

type resizeTask struct {
	ctx    context.Context
	job    ResizeJob
	result chan resizeResult
}

// ImageProcessor runs resize jobs on a fixed set of workers so that the
// number of images decoded at once stays bounded.
type ImageProcessor struct {
	jobs       chan resizeTask
	wg         sync.WaitGroup
	transcoder *Transcoder
	maxWorkers int

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func NewImageProcessor(transcoder *Transcoder, maxWorkers, queueSize int) *ImageProcessor {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &ImageProcessor{
		jobs:       make(chan resizeTask, queueSize),
		transcoder: transcoder,
		maxWorkers: maxWorkers,
	}

	p.startWorkers()
	return p
}

func (p *ImageProcessor) startWorkers() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *ImageProcessor) worker(id int) {
	defer p.wg.Done()

	for task := range p.jobs {
		if err := task.ctx.Err(); err != nil {
			task.result <- resizeResult{err: err}
			continue
		}

		start := time.Now()
		out, err := p.transcoder.Resize(task.job.Path, task.job.Params)
		if err != nil {
			log.Warn().Err(err).Int("worker", id).Str("path", task.job.Path).Msg("resize failed")
		} else {
			log.Debug().
				Int("worker", id).
				Str("path", task.job.Path).
				Int("width", out.Width).
				Int("height", out.Height).
				Dur("took", time.Since(start)).
				Msg("resize complete")
		}
		task.result <- resizeResult{out: out, err: err}
	}
}

// Process queues job and waits for its result. ctx bounds both the wait for
// a queue slot and the wait for the worker.
func (p *ImageProcessor) Process(ctx context.Context, job ResizeJob) (Transcoded, error) {
	task := resizeTask{ctx: ctx, job: job, result: make(chan resizeResult, 1)}

	if err := p.enqueue(ctx, task); err != nil {
		return Transcoded{}, err
	}

	select {
	case res := <-task.result:
		return res.out, res.err
	case <-ctx.Done():
		return Transcoded{}, fmt.Errorf("resize %s: %w", job.Path, ctx.Err())
	}
}

func (p *ImageProcessor) enqueue(ctx context.Context, task resizeTask) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrProcessorClosed
	}

	select {
	case p.jobs <- task:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue resize %s: %w", task.job.Path, ctx.Err())
	}
}

func (p *ImageProcessor) Shutdown() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
	})
}
