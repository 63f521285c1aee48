package core

// workspace.go owns one session's FileRegistry.
//
// Admission is a read-then-write sequence: the compatibility check reads the
// registry and the admit writes it. The workspace holds its mutex across both
// so two files can never pass a check that goes stale before either lands.
// Exports merge under the same mutex, then hand the finished table to a sink
// in a background goroutine bounded by the ExportLimiter.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultExportTimeout bounds a single background export.
const DefaultExportTimeout = 5 * time.Minute

// Sink is an export destination for merged tables. Write must either store
// the whole table or nothing.
type Sink interface {
	Name() string
	Write(ctx context.Context, table *MergedTable) error
}

// ExportStatus is the lifecycle state of an export job.
type ExportStatus string

const (
	ExportPending  ExportStatus = "pending"
	ExportRunning  ExportStatus = "running"
	ExportComplete ExportStatus = "complete"
	ExportFailed   ExportStatus = "failed"
)

// ExportJob tracks one background export.
type ExportJob struct {
	ID         string       `json:"id"`
	Sink       string       `json:"sink"`
	Status     ExportStatus `json:"status"`
	Rows       int          `json:"rows"`
	Partial    bool         `json:"partial"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at,omitempty"`

	err  error
	done chan struct{}
}

// Err returns the export failure, if any. Valid once the job is done.
func (j *ExportJob) Err() error {
	return j.err
}

// WorkspaceOptions configures a Workspace.
type WorkspaceOptions struct {
	Ingest        IngestOptions
	Limiter       *ExportLimiter // shared across workspaces; nil creates a private one
	ExportTimeout time.Duration
	Logger        *slog.Logger
}

// Workspace is the session owner of one FileRegistry.
type Workspace struct {
	ID string

	mu       sync.Mutex
	registry *FileRegistry
	ingest   IngestOptions

	limiter       *ExportLimiter
	exportTimeout time.Duration
	logger        *slog.Logger

	jobsMu sync.RWMutex
	jobs   map[string]*ExportJob
	wg     sync.WaitGroup
}

// NewWorkspace creates an empty workspace with a fresh ID.
func NewWorkspace(opts WorkspaceOptions) *Workspace {
	if opts.Limiter == nil {
		opts.Limiter = NewExportLimiter(DefaultMaxConcurrentExports, DefaultExportWaitTime)
	}
	if opts.ExportTimeout <= 0 {
		opts.ExportTimeout = DefaultExportTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	id := uuid.NewString()
	return &Workspace{
		ID:            id,
		registry:      NewFileRegistry(opts.Ingest.parser()),
		ingest:        opts.Ingest,
		limiter:       opts.Limiter,
		exportTimeout: opts.ExportTimeout,
		logger:        opts.Logger.With("workspace", id),
		jobs:          make(map[string]*ExportJob),
	}
}

// ValidateFile runs the ingestion checks for path without admitting it.
func (w *Workspace) ValidateFile(path string) error {
	return ValidateFile(path, w.ingest)
}

// CheckFieldCountCompatible reports whether path's first record matches the
// width of every admitted file.
func (w *Workspace) CheckFieldCountCompatible(path string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registry.CheckFieldCountCompatible(path)
}

// Admit validates path, checks its width against the registry and admits it.
// An incompatible width returns ErrFieldCountIncompatible unless force is set.
func (w *Workspace) Admit(ctx context.Context, path string, hasHeader, force bool) (*SourceFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ioFailure("resolve", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if w.registry.IndexOf(abs) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyAdmitted, filepath.Base(abs))
	}

	if err := ValidateFile(abs, w.ingest); err != nil {
		w.logger.Info("file rejected", "file", filepath.Base(abs), "error", err)
		return nil, err
	}

	compatible, err := w.registry.CheckFieldCountCompatible(abs)
	if err != nil {
		return nil, err
	}
	if !compatible {
		if !force {
			return nil, fmt.Errorf("%w: %s does not match the admitted files", ErrFieldCountIncompatible, filepath.Base(abs))
		}
		w.logger.Warn("admitting file with incompatible field count", "file", filepath.Base(abs))
	}

	sf, err := NewSourceFile(abs, hasHeader, w.ingest)
	if err != nil {
		return nil, err
	}
	if err := w.registry.Admit(sf); err != nil {
		return nil, err
	}

	w.logger.Info("file admitted",
		"file", sf.Name,
		"field_count", sf.FieldCount,
		"rows", sf.RowCount(),
		"position", w.registry.IndexOf(sf.Path),
		"files", w.registry.Len(),
	)
	return sf, nil
}

// Remove drops the file at index.
func (w *Workspace) Remove(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.registry.Remove(index); err != nil {
		return err
	}
	w.logger.Info("file removed", "index", index, "files", w.registry.Len())
	return nil
}

// SetHasHeader toggles the header flag of the file at index and rebuilds its table.
func (w *Workspace) SetHasHeader(index int, hasHeader bool) (*SourceFile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sf, err := w.registry.At(index)
	if err != nil {
		return nil, err
	}
	if err := sf.SetHasHeader(hasHeader); err != nil {
		return nil, err
	}
	w.logger.Debug("table rebuilt", "file", sf.Name, "has_header", hasHeader, "rows", sf.RowCount())
	return sf, nil
}

// File returns the file at index.
func (w *Workspace) File(index int) (*SourceFile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registry.At(index)
}

// Files returns the admitted files in registry order.
func (w *Workspace) Files() []*SourceFile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registry.Files()
}

// HeadersConsistent reports whether all header-bearing files share one header.
func (w *Workspace) HeadersConsistent() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registry.ValidateHeaderConsistency()
}

// Merge builds a merged table from the current registry.
func (w *Workspace) Merge(opts MergeOptions) (*MergedTable, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Merge(w.registry, opts)
}

// StartExport merges the registry and writes the result to sink in the
// background. It returns the job ID; poll Export for the outcome.
func (w *Workspace) StartExport(ctx context.Context, sink Sink, opts MergeOptions) (string, error) {
	table, err := w.Merge(opts)
	if err != nil {
		return "", err
	}

	if err := w.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	job := &ExportJob{
		ID:        uuid.NewString(),
		Sink:      sink.Name(),
		Status:    ExportPending,
		Rows:      len(table.Rows),
		Partial:   table.Partial,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	w.jobsMu.Lock()
	w.jobs[job.ID] = job
	w.jobsMu.Unlock()

	// The export outlives the request that started it.
	exportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.exportTimeout)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer cancel()
		defer w.limiter.Release()
		w.runExport(exportCtx, job, sink, table)
	}()

	return job.ID, nil
}

func (w *Workspace) runExport(ctx context.Context, job *ExportJob, sink Sink, table *MergedTable) {
	defer close(job.done)
	logger := w.logger.With("export_id", job.ID, "sink", job.Sink)

	// A panicking sink fails the job; the limiter slot is released by the caller.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in export", "panic", r)
			w.setJobStatus(job, ExportFailed, fmt.Errorf("%w: export panicked: %v", ErrInternal, r))
		}
	}()

	w.setJobStatus(job, ExportRunning, nil)
	logger.Info("export started", "rows", job.Rows)

	err := sink.Write(ctx, table)
	if err != nil && !errors.Is(err, ErrIOFailure) {
		err = fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err != nil {
		w.setJobStatus(job, ExportFailed, err)
		logger.Error("export failed", "error", err)
		return
	}

	w.setJobStatus(job, ExportComplete, nil)
	logger.Info("export complete", "rows", job.Rows, "duration_ms", time.Since(job.StartedAt).Milliseconds())
}

func (w *Workspace) setJobStatus(job *ExportJob, status ExportStatus, err error) {
	w.jobsMu.Lock()
	defer w.jobsMu.Unlock()

	job.Status = status
	if err != nil {
		job.err = err
		job.Error = err.Error()
	}
	if status == ExportComplete || status == ExportFailed {
		job.FinishedAt = time.Now()
	}
}

// Export returns a snapshot of the export job with the given ID.
func (w *Workspace) Export(id string) (ExportJob, error) {
	w.jobsMu.RLock()
	defer w.jobsMu.RUnlock()

	job, ok := w.jobs[id]
	if !ok {
		return ExportJob{}, fmt.Errorf("%w: %s", ErrExportNotFound, id)
	}
	snapshot := *job
	snapshot.done = nil
	return snapshot, nil
}

// Exports returns snapshots of all export jobs, oldest first.
func (w *Workspace) Exports() []ExportJob {
	w.jobsMu.RLock()
	defer w.jobsMu.RUnlock()

	out := make([]ExportJob, 0, len(w.jobs))
	for _, job := range w.jobs {
		snapshot := *job
		snapshot.done = nil
		out = append(out, snapshot)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// WaitExport blocks until the export finishes or ctx is done.
func (w *Workspace) WaitExport(ctx context.Context, id string) (ExportJob, error) {
	w.jobsMu.RLock()
	job, ok := w.jobs[id]
	w.jobsMu.RUnlock()
	if !ok {
		return ExportJob{}, fmt.Errorf("%w: %s", ErrExportNotFound, id)
	}

	select {
	case <-job.done:
	case <-ctx.Done():
		return ExportJob{}, ctx.Err()
	}
	return w.Export(id)
}

// WaitForExports blocks until every export started by this workspace finishes.
func (w *Workspace) WaitForExports(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
