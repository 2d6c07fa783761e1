// Package pose turns uploaded videos into stored BVH animations.
package pose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/motionlab/backend/internal/bvh"
	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/models"
	"github.com/motionlab/backend/internal/storage"
)

// MotionExtractor converts a video into BVH files on local disk.
type MotionExtractor interface {
	Extract(ctx context.Context, videoPath, outDir string, opts Options) ([]string, error)
}

// ProjectUpdater persists the terminal status of a processing project.
type ProjectUpdater interface {
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id, reason string, at time.Time) error
}

// BVHRecorder persists references to stored BVH files.
type BVHRecorder interface {
	Create(ctx context.Context, file models.BVHFile) error
	DeleteByProject(ctx context.Context, projectID string) error
}

// ProcessorConfig controls the concurrency characteristics of the processor.
type ProcessorConfig struct {
	QueueSize int
	Workers   int
	// Timeout bounds one job end to end, extraction included.
	Timeout time.Duration
}

// Job is one uploaded video awaiting extraction. The processor owns VideoPath
// and removes it when the job ends.
type Job struct {
	Project   models.Project
	VideoPath string
	Options   Options
}

// Result reports the outcome of a job.
type Result struct {
	ProjectID string
	Filenames []string
	Err       error
}

// ErrProcessorClosed is returned by Submit after Shutdown.
var ErrProcessorClosed = errors.New("pose processor closed")

// Processor runs extraction jobs on a bounded worker pool.
type Processor struct {
	extractor MotionExtractor
	storage   storage.AssetStorage
	projects  ProjectUpdater
	files     BVHRecorder
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	jobs   chan queuedJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu      sync.Mutex
	pending int
}

type queuedJob struct {
	job    Job
	result chan Result
}

// NewProcessor starts cfg.Workers workers.
func NewProcessor(extractor MotionExtractor, store storage.AssetStorage, projects ProjectUpdater, files BVHRecorder, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Processor{
		extractor: extractor,
		storage:   store,
		projects:  projects,
		files:     files,
		logger:    logger.With(slog.String("service", logging.ServiceProcessor)),
		timeout:   cfg.Timeout,
		now:       time.Now,
		jobs:      make(chan queuedJob, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}

	return p
}

// Submit queues job and returns a channel that receives exactly one Result.
// The job keeps running even if the caller stops waiting.
func (p *Processor) Submit(ctx context.Context, job Job) (<-chan Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, ErrProcessorClosed
	default:
	}

	q := queuedJob{job: job, result: make(chan Result, 1)}
	p.addPending(1)

	select {
	case <-ctx.Done():
		p.addPending(-1)
		return nil, ctx.Err()
	case <-p.ctx.Done():
		p.addPending(-1)
		return nil, ErrProcessorClosed
	case p.jobs <- q:
		return q.result, nil
	}
}

func (p *Processor) addPending(n int) {
	p.mu.Lock()
	p.pending += n
	p.mu.Unlock()
}

// Pending reports queued plus in-flight jobs.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Shutdown stops accepting jobs and waits for workers to finish their current job.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		p.cancel()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		p.drain()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (p *Processor) worker() {
	defer p.wg.Done()

	for {
		if p.ctx.Err() != nil {
			p.drain()
			return
		}
		select {
		case <-p.ctx.Done():
			p.drain()
			return
		case q := <-p.jobs:
			q.result <- p.handle(q.job)
			p.addPending(-1)
		}
	}
}

// drain fails jobs still queued at shutdown so their projects do not stay processing.
func (p *Processor) drain() {
	for {
		select {
		case q := <-p.jobs:
			err := ErrProcessorClosed
			p.fail(q.job, err)
			os.Remove(q.job.VideoPath)
			q.result <- Result{ProjectID: q.job.Project.ID, Err: err}
			p.addPending(-1)
		default:
			return
		}
	}
}

func (p *Processor) handle(job Job) Result {
	defer os.Remove(job.VideoPath)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, p.logger.With(slog.String("project_id", job.Project.ID)))
	ctx, span := logging.StartSpan(ctx, "pose.process")

	filenames, keys, err := p.process(ctx, job)
	if err == nil {
		if err = p.projects.MarkCompleted(ctx, job.Project.ID, p.now().UTC()); err != nil {
			err = fmt.Errorf("mark project completed: %w", err)
		}
	}
	if err != nil {
		span.Fail(err)
		p.discard(job.Project.ID, keys)
		p.fail(job, err)
		return Result{ProjectID: job.Project.ID, Err: err}
	}
	span.End()
	return Result{ProjectID: job.Project.ID, Filenames: filenames}
}

// process returns the stored filenames and every storage key written, including
// those written before a failure.
func (p *Processor) process(ctx context.Context, job Job) (filenames, keys []string, err error) {
	if p.extractor == nil || p.storage == nil || p.projects == nil || p.files == nil {
		return nil, nil, errors.New("pose processor missing dependencies")
	}

	outDir, err := os.MkdirTemp("", "motionlab-pose-*")
	if err != nil {
		return nil, nil, fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	paths, err := p.extractor.Extract(ctx, job.VideoPath, outDir, job.Options)
	if err != nil {
		return nil, nil, err
	}

	filenames = make([]string, 0, len(paths))
	for _, local := range paths {
		file, err := p.store(ctx, job.Project.ID, local)
		if file.StorageKey != "" {
			keys = append(keys, file.StorageKey)
		}
		if err != nil {
			return nil, keys, err
		}
		filenames = append(filenames, file.Filename)
	}

	logging.FromContext(ctx).Info("video processed", slog.Int("bvh_files", len(filenames)))
	return filenames, keys, nil
}

// discard removes what a failed job already stored so the failed project lists no files.
func (p *Processor) discard(projectID string, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.files.DeleteByProject(ctx, projectID); err != nil {
		p.logger.Error("discard bvh records", "projectId", projectID, "error", err)
	}
	if err := storage.DeleteAll(ctx, p.storage, keys); err != nil {
		p.logger.Error("discard bvh objects", "projectId", projectID, "error", err)
	}
}

// store validates one BVH file, uploads it and records it. Once the upload succeeded the
// returned record carries its StorageKey, even when recording fails.
func (p *Processor) store(ctx context.Context, projectID, local string) (models.BVHFile, error) {
	name := filepath.Base(local)

	f, err := os.Open(local)
	if err != nil {
		return models.BVHFile{}, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	clip, err := bvh.Parse(f)
	if err != nil {
		return models.BVHFile{}, fmt.Errorf("validate %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		return models.BVHFile{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return models.BVHFile{}, fmt.Errorf("rewind %s: %w", name, err)
	}

	key, err := p.storage.Save(ctx, path.Join("bvh", projectID, name), f)
	if err != nil {
		return models.BVHFile{}, fmt.Errorf("store %s: %w", name, err)
	}

	record := models.BVHFile{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		Filename:   name,
		StorageKey: key,
		Frames:     clip.Frames,
		FrameTime:  clip.FrameTime,
		Duration:   clip.Duration(),
		SizeBytes:  info.Size(),
		CreatedAt:  p.now().UTC(),
	}
	if err := p.files.Create(ctx, record); err != nil {
		return models.BVHFile{StorageKey: key}, fmt.Errorf("record %s: %w", name, err)
	}
	return record, nil
}

func (p *Processor) fail(job Job, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if p.projects == nil {
		return
	}
	if err := p.projects.MarkFailed(ctx, job.Project.ID, cause.Error(), p.now().UTC()); err != nil {
		p.logger.Error("record processing failure", "projectId", job.Project.ID, "error", err)
	}
}
