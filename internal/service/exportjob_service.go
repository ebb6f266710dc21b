package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/jobs"
	"github.com/noah-isme/homeroom-api/pkg/storage"
)

// Export job kinds accepted by Enqueue.
const (
	ExportJobWeekScores = "week_scores"
	ExportJobRankings   = "rankings"
)

// ExportJobStatus is the lifecycle state of one queued export.
type ExportJobStatus string

const (
	ExportJobPending ExportJobStatus = "pending"
	ExportJobDone    ExportJobStatus = "done"
	ExportJobFailed  ExportJobStatus = "failed"
)

// ExportJob tracks one queued export request.
type ExportJob struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Week          int             `json:"week"`
	Class         string          `json:"class,omitempty"`
	Status        ExportJobStatus `json:"status"`
	FileName      string          `json:"file_name,omitempty"`
	Error         string          `json:"error,omitempty"`
	DownloadToken string          `json:"download_token,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type exportJobPayload struct {
	Kind  string
	Week  int
	Class string
}

// ExportJobService renders heavy exports off the request path. Results land
// on local disk and are fetched later through a signed one-off token; state
// is in-memory and does not survive a restart.
type ExportJobService struct {
	exports *ExportService
	store   *storage.FileStore
	signer  *storage.DownloadSigner
	queue   *jobs.Queue
	logger  *zap.Logger

	mu   sync.RWMutex
	byID map[string]*ExportJob
}

// NewExportJobService constructs the service and its worker queue. Call
// Start before enqueueing and Stop on shutdown.
func NewExportJobService(exports *ExportService, store *storage.FileStore, signer *storage.DownloadSigner, logger *zap.Logger) *ExportJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportJobService{
		exports: exports,
		store:   store,
		signer:  signer,
		logger:  logger,
		byID:    make(map[string]*ExportJob),
	}
	s.queue = jobs.NewQueue("exports", s.run, jobs.Options{
		Workers:    2,
		MaxRetries: 1,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *ExportJobService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *ExportJobService) Stop() {
	s.queue.Stop()
}

// Enqueue registers a new export job and hands it to the queue.
func (s *ExportJobService) Enqueue(kind string, week int, class string) (*ExportJob, error) {
	if kind != ExportJobWeekScores && kind != ExportJobRankings {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown export kind %q", kind))
	}
	if week < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "week must be at least 1")
	}

	job := &ExportJob{
		ID:        uuid.NewString(),
		Kind:      kind,
		Week:      week,
		Class:     class,
		Status:    ExportJobPending,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.byID[job.ID] = job
	s.mu.Unlock()

	err := s.queue.Submit(jobs.Task{
		ID:      job.ID,
		Kind:    kind,
		Payload: exportJobPayload{Kind: kind, Week: week, Class: class},
	})
	if err != nil {
		s.fail(job.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	return s.snapshot(job.ID), nil
}

// Status returns the current state of a job, with a fresh download token
// once the file is ready.
func (s *ExportJobService) Status(jobID string) (*ExportJob, error) {
	job := s.snapshot(jobID)
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if job.Status == ExportJobDone && job.FileName != "" {
		token, expiresAt, err := s.signer.Sign(job.ID, job.FileName)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
		}
		job.DownloadToken = token
		job.ExpiresAt = &expiresAt
	}
	return job, nil
}

// Resolve validates a download token and returns the absolute file path.
func (s *ExportJobService) Resolve(token string) (string, string, error) {
	jobID, relPath, _, err := s.signer.Verify(token, false)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	s.mu.RLock()
	job, ok := s.byID[jobID]
	s.mu.RUnlock()
	if !ok || job.Status != ExportJobDone || job.FileName != relPath {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	path, err := s.store.Abs(relPath)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return path, relPath, nil
}

// CleanupExpired removes export files older than the given TTL.
func (s *ExportJobService) CleanupExpired(ttl time.Duration) {
	deleted, err := s.store.Sweep(ttl)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
}

func (s *ExportJobService) run(ctx context.Context, job jobs.Task) error {
	payload, ok := job.Payload.(exportJobPayload)
	if !ok {
		s.fail(job.ID, fmt.Errorf("bad payload type %T", job.Payload))
		return nil
	}

	var (
		data []byte
		name string
		err  error
	)
	switch payload.Kind {
	case ExportJobWeekScores:
		name = fmt.Sprintf("%s/week_%d_scores.xlsx", job.ID, payload.Week)
		data, err = s.exports.WeekScoresXLSX(ctx, payload.Week, payload.Class)
	case ExportJobRankings:
		name = fmt.Sprintf("%s/rankings_week_%d.xlsx", job.ID, payload.Week)
		data, err = s.exports.RankingsXLSX(ctx, payload.Week)
	default:
		err = fmt.Errorf("unknown export kind %q", payload.Kind)
	}
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	if err := s.store.WriteFile(name, data); err != nil {
		s.fail(job.ID, err)
		return err
	}

	s.mu.Lock()
	if j, ok := s.byID[job.ID]; ok {
		j.Status = ExportJobDone
		j.FileName = name
		j.Error = ""
	}
	s.mu.Unlock()
	return nil
}

func (s *ExportJobService) fail(jobID string, err error) {
	s.mu.Lock()
	if j, ok := s.byID[jobID]; ok {
		j.Status = ExportJobFailed
		j.Error = err.Error()
	}
	s.mu.Unlock()
}

func (s *ExportJobService) snapshot(jobID string) *ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.byID[jobID]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}
