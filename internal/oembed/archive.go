package oembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"
)

// ErrArchiveStorageUnavailable indicates the archive has no storage backend.
var ErrArchiveStorageUnavailable = errors.New("archive storage unavailable")

var errArchiverClosed = errors.New("response archiver closed")

// ArchiveStorage persists raw provider documents and returns their location.
type ArchiveStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// ArchiveJob is one raw provider document awaiting upload.
type ArchiveJob struct {
	ResourceID string
	Provider   string
	Body       []byte
}

// ArchiverConfig controls the concurrency characteristics of the archiver.
type ArchiverConfig struct {
	QueueSize int
	Workers   int
}

// Archiver asynchronously uploads raw provider documents so resolutions never
// wait on object storage.
type Archiver struct {
	storage ArchiveStorage
	logger  *slog.Logger

	jobs    chan ArchiveJob
	closing chan struct{}

	// mu keeps senders out while jobs is closed.
	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewArchiver starts cfg.Workers goroutines draining a queue of cfg.QueueSize jobs.
func NewArchiver(storage ArchiveStorage, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &Archiver{
		storage: storage,
		logger:  logger,
		jobs:    make(chan ArchiveJob, cfg.QueueSize),
		closing: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	a.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go a.worker()
	}

	return a
}

// Enqueue schedules job for upload. It blocks while the queue is full.
func (a *Archiver) Enqueue(ctx context.Context, job ArchiveJob) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.closing:
		return errArchiverClosed
	default:
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.closing:
		return errArchiverClosed
	case a.jobs <- job:
		return nil
	}
}

// Shutdown stops accepting jobs and waits for the workers to upload every
// queued job. When ctx expires first, in-flight uploads are cancelled and the
// remaining jobs are dropped.
func (a *Archiver) Shutdown(ctx context.Context) error {
	a.once.Do(func() {
		close(a.closing)
		a.mu.Lock()
		close(a.jobs)
		a.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		a.cancel()
		return ctx.Err()
	case <-done:
		a.cancel()
		return nil
	}
}

func (a *Archiver) worker() {
	defer a.wg.Done()

	for job := range a.jobs {
		if a.ctx.Err() != nil {
			a.logger.Warn("dropping provider response archive", "resourceId", job.ResourceID, "provider", job.Provider)
			continue
		}
		a.handleJob(job)
	}
}

func (a *Archiver) handleJob(job ArchiveJob) {
	if a.storage == nil {
		a.logger.Error("response archiver missing storage", "resourceId", job.ResourceID)
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
	defer cancel()

	prefixed := &prefixedStorage{prefix: archivePrefix(job.Provider), base: a.storage}
	location, err := prefixed.Save(ctx, job.ResourceID+".xml", bytes.NewReader(job.Body))
	if err != nil {
		a.logger.Error("archive provider response", "resourceId", job.ResourceID, "provider", job.Provider, "error", err)
		return
	}

	a.logger.Debug("archived provider response", "resourceId", job.ResourceID, "location", location, "size", len(job.Body))
}

type prefixedStorage struct {
	prefix string
	base   ArchiveStorage
}

func (p *prefixedStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if p.base == nil {
		return "", fmt.Errorf("prefix storage: %w", ErrArchiveStorageUnavailable)
	}
	key := path.Join(p.prefix, name)
	if strings.TrimSpace(key) == "" {
		return "", errors.New("prefix storage: empty key")
	}
	return p.base.Save(ctx, key, r)
}

func archivePrefix(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", " ", "_").Replace(provider)
}
