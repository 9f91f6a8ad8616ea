package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storepulse/backend/internal/domain"
	"go.uber.org/zap"
)

// ExportStatus is the lifecycle state of a detached export job.
type ExportStatus string

const (
	ExportQueued    ExportStatus = "queued"
	ExportRunning   ExportStatus = "running"
	ExportCompleted ExportStatus = "completed"
	ExportFailed    ExportStatus = "failed"
)

// ExportJob is the observable state of one export run. Errors collects every
// non-fatal step failure (write, transform, upload); Artifacts lists files
// produced locally.
type ExportJob struct {
	ID         string       `json:"id"`
	Status     ExportStatus `json:"status"`
	EnqueuedAt time.Time    `json:"enqueuedAt"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
	Artifacts  []string     `json:"artifacts,omitempty"`
	Errors     []string     `json:"errors,omitempty"`
}

type exportTask struct {
	id   string
	pair *domain.StorePair
}

// ExportWorkerConfig holds export worker configuration
type ExportWorkerConfig struct {
	OutputDir string
	Prefix    string
	QueueSize int
}

// ExportWorker persists enriched results off the request path: serialize,
// write local artifacts, optionally run the external cleaner, optionally
// upload to the object store. A single consumer goroutine processes jobs in
// order, which also serializes access to the fixed artifact filenames.
type ExportWorker struct {
	serializer *Serializer
	transform  domain.TransformRunner
	store      domain.ObjectStore
	outputDir  string
	prefix     string
	logger     *zap.Logger

	jobs chan exportTask

	mu       sync.RWMutex
	registry map[string]*ExportJob

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExportWorker creates a worker. transform and store may be nil when the
// corresponding stage is disabled.
func NewExportWorker(
	serializer *Serializer,
	transform domain.TransformRunner,
	store domain.ObjectStore,
	config ExportWorkerConfig,
	logger *zap.Logger,
) *ExportWorker {
	queueSize := config.QueueSize
	if queueSize < 1 {
		queueSize = 16
	}

	return &ExportWorker{
		serializer: serializer,
		transform:  transform,
		store:      store,
		outputDir:  config.OutputDir,
		prefix:     config.Prefix,
		logger:     logger,
		jobs:       make(chan exportTask, queueSize),
		registry:   make(map[string]*ExportJob),
	}
}

// Start starts the background consumer.
func (w *ExportWorker) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.processLoop(ctx)

	w.logger.Info("export worker started",
		zap.String("output_dir", w.outputDir),
		zap.Int("queue_size", cap(w.jobs)))
	return nil
}

// Stop drains in-flight work and shuts the consumer down.
func (w *ExportWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("export worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue registers a job and hands it to the consumer without blocking the
// caller. A full queue fails the job immediately; the HTTP response that
// triggered it is unaffected.
func (w *ExportWorker) Enqueue(pair *domain.StorePair) (string, error) {
	id := uuid.NewString()
	job := &ExportJob{
		ID:         id,
		Status:     ExportQueued,
		EnqueuedAt: time.Now(),
	}

	w.mu.Lock()
	w.registry[id] = job
	w.mu.Unlock()

	select {
	case w.jobs <- exportTask{id: id, pair: pair}:
		return id, nil
	default:
		w.finishJob(id, ExportFailed, nil, []string{domain.ErrExportQueueFull.Error()})
		return "", domain.ErrExportQueueFull
	}
}

// Job returns a copy of the job's current state.
func (w *ExportWorker) Job(id string) (ExportJob, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	job, ok := w.registry[id]
	if !ok {
		return ExportJob{}, domain.ErrJobNotFound
	}
	return *job, nil
}

func (w *ExportWorker) processLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.jobs:
			// The job runs outside the loop's cancellation so Stop drains
			// the job in flight instead of aborting its transform/upload.
			w.process(context.WithoutCancel(ctx), task)
		}
	}
}

func (w *ExportWorker) process(ctx context.Context, task exportTask) {
	w.setStatus(task.id, ExportRunning)
	w.logger.Info("export started", zap.String("job_id", task.id))

	var artifacts, stepErrors []string
	batches := map[domain.Store][]*domain.Record{
		domain.StoreAppStore:   task.pair.AppStore,
		domain.StoreGooglePlay: task.pair.GooglePlay,
	}

	for _, store := range []domain.Store{domain.StoreAppStore, domain.StoreGooglePlay} {
		produced, errs := w.exportStore(ctx, store, batches[store])
		artifacts = append(artifacts, produced...)
		stepErrors = append(stepErrors, errs...)
	}

	status := ExportCompleted
	if len(stepErrors) > 0 {
		status = ExportFailed
	}
	w.finishJob(task.id, status, artifacts, stepErrors)

	w.logger.Info("export finished",
		zap.String("job_id", task.id),
		zap.String("status", string(status)),
		zap.Strings("artifacts", artifacts),
		zap.Int("errors", len(stepErrors)))
}

// exportStore serializes one store's batch, writes the local files, runs the
// cleaner and uploads. Every failure is recorded and the remaining steps for
// other files continue.
func (w *ExportWorker) exportStore(ctx context.Context, store domain.Store, records []*domain.Record) (artifacts, stepErrors []string) {
	name := store.ArtifactName()

	csvData, err := w.serializer.CSV(records)
	if err != nil {
		return nil, []string{fmt.Sprintf("%s: csv: %v", name, err)}
	}
	jsonData, err := w.serializer.NDJSON(records)
	if err != nil {
		return nil, []string{fmt.Sprintf("%s: json: %v", name, err)}
	}

	csvName := name + ".csv"
	jsonName := name + ".json"
	var uploads []string

	if err := w.writeLocal(csvName, csvData); err != nil {
		stepErrors = append(stepErrors, err.Error())
	} else {
		artifacts = append(artifacts, csvName)
		uploads = append(uploads, csvName)
	}
	if err := w.writeLocal(jsonName, jsonData); err != nil {
		stepErrors = append(stepErrors, err.Error())
	} else {
		artifacts = append(artifacts, jsonName)
		uploads = append(uploads, jsonName)
	}

	if w.transform != nil && contains(uploads, csvName) {
		cleanedName := name + "_cleaned.csv"
		err := w.transform.Run(ctx,
			filepath.Join(w.outputDir, csvName),
			filepath.Join(w.outputDir, cleanedName))
		if err != nil {
			// Derived artifacts are skipped when the cleaner fails.
			stepErrors = append(stepErrors, fmt.Sprintf("%s: transform: %v", name, err))
		} else {
			artifacts = append(artifacts, cleanedName)
			uploads = append(uploads, cleanedName)
		}
	}

	if w.store != nil {
		for _, fileName := range uploads {
			if err := w.upload(ctx, fileName); err != nil {
				stepErrors = append(stepErrors, fmt.Sprintf("%s: upload: %v", fileName, err))
			}
		}
	}

	return artifacts, stepErrors
}

// writeLocal overwrites (or creates) an artifact in the output directory.
func (w *ExportWorker) writeLocal(name string, data []byte) error {
	path := filepath.Join(w.outputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		w.logger.Error("local write failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%s: write: %v", name, err)
	}
	return nil
}

func (w *ExportWorker) upload(ctx context.Context, fileName string) error {
	data, err := os.ReadFile(filepath.Join(w.outputDir, fileName))
	if err != nil {
		return err
	}

	key := fileName
	if w.prefix != "" {
		key = strings.TrimRight(w.prefix, "/") + "/" + fileName
	}

	exists, err := w.store.Exists(ctx, key)
	if err != nil {
		w.logger.Warn("object existence check failed", zap.String("key", key), zap.Error(err))
	} else if exists {
		w.logger.Info("updating existing object", zap.String("key", key))
	} else {
		w.logger.Info("creating new object", zap.String("key", key))
	}

	return w.store.Upload(ctx, key, data, contentTypeFor(fileName))
}

func (w *ExportWorker) setStatus(id string, status ExportStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if job, ok := w.registry[id]; ok {
		job.Status = status
	}
}

func (w *ExportWorker) finishJob(id string, status ExportStatus, artifacts, errs []string) {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	if job, ok := w.registry[id]; ok {
		job.Status = status
		job.FinishedAt = &now
		job.Artifacts = artifacts
		job.Errors = errs
	}
}

func contentTypeFor(fileName string) string {
	if strings.HasSuffix(fileName, ".json") {
		return "application/json"
	}
	return "text/csv"
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
