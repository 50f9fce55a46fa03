// internal/service/upload.go
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quizlens/client/internal/apierr"
	"github.com/quizlens/client/internal/domain/question"
	"github.com/quizlens/client/internal/extract"
	"github.com/quizlens/client/internal/store"
)

// Submitter sends a file to the job-creation endpoint.
type Submitter interface {
	Submit(ctx context.Context, file extract.FileRef, token string) (string, error)
}

// Poller waits for a job's result.
type Poller interface {
	Poll(ctx context.Context, jobID, token string, onEvent extract.EventFunc) (*extract.Job, error)
}

// JobRecorder persists submitted jobs so interrupted sessions can be
// resumed later. May be nil when history is not wanted.
type JobRecorder interface {
	RecordJob(rec store.JobRecord) error
	CompleteJob(jobID, status string, itemsCount int) error
}

// Stage identifies where in the workflow an upload session currently is.
type Stage string

const (
	StageSubmitting Stage = "submitting"
	StageWaiting    Stage = "waiting" // grace period after submit
	StagePolling    Stage = "polling"
	StageRetrying   Stage = "retrying"
	StageReady      Stage = "ready"
)

// Status is a user-visible snapshot of the session, pushed through the
// caller's callback.
type Status struct {
	Stage       Stage
	Attempt     int // poll attempt, when polling
	MaxAttempts int
	Retry       int // which automatic re-run this is, when retrying
	Message     string
}

// StatusFunc receives status updates. A nil StatusFunc is allowed.
type StatusFunc func(Status)

// UploadResult is everything the caller gets back from a finished session.
type UploadResult struct {
	SessionID string
	JobID     string
	Questions []question.Question
}

// UploadService sequences the full image-to-questions workflow: submit,
// grace wait, poll, normalize. It owns the retry policy and allows only
// one active session at a time.
type UploadService struct {
	submitter Submitter
	poller    Poller
	recorder  JobRecorder
	logger    *slog.Logger

	graceWait  time.Duration
	retryDelay time.Duration
	maxRetries int

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	active bool
}

// NewUploadService creates an UploadService. recorder may be nil.
func NewUploadService(submitter Submitter, poller Poller, recorder JobRecorder, logger *slog.Logger) *UploadService {
	return &UploadService{
		submitter:  submitter,
		poller:     poller,
		recorder:   recorder,
		logger:     logger,
		graceWait:  2 * time.Second,
		retryDelay: 3 * time.Second,
		maxRetries: 2,
		sleep:      sleepCtx,
	}
}

// SetTiming overrides the grace and retry delays; used by the CLI to apply
// configuration and by tests to run fast.
func (s *UploadService) SetTiming(graceWait, retryDelay time.Duration, maxRetries int) {
	s.graceWait = graceWait
	s.retryDelay = retryDelay
	s.maxRetries = maxRetries
}

// Upload runs one session end to end. A second call while a session is in
// flight is rejected with SessionActive — sessions never run concurrently
// on the same service instance. Cancellation propagates through ctx and is
// reported as Cancelled, never as a user-facing failure.
func (s *UploadService) Upload(ctx context.Context, file extract.FileRef, token string, onStatus StatusFunc) (*UploadResult, error) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil, apierr.New(apierr.KindSessionActive, "An upload is already in progress.")
	}
	s.active = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()

	emit := func(st Status) {
		if onStatus != nil {
			onStatus(st)
		}
	}

	sessionID := uuid.NewString()
	logger := s.logger.With("session_id", sessionID, "file", file.Name)

	var lastErr error
	for run := 0; run <= s.maxRetries; run++ {
		if run > 0 {
			emit(Status{Stage: StageRetrying, Retry: run, Message: "Retrying upload..."})
			logger.Info("retrying upload sequence", "run", run, "cause", lastErr)
			if err := s.sleep(ctx, s.retryDelay); err != nil {
				return nil, apierr.Wrap(apierr.KindCancelled, "", err)
			}
		}

		result, err := s.runOnce(ctx, file, token, sessionID, logger, emit)
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}

	logger.Warn("upload failed after all retries", "error", lastErr)
	return nil, lastErr
}

// runOnce is one complete submit→wait→poll→map pass.
func (s *UploadService) runOnce(ctx context.Context, file extract.FileRef, token, sessionID string, logger *slog.Logger, emit StatusFunc) (*UploadResult, error) {
	emit(Status{Stage: StageSubmitting})
	jobID, err := s.submitter.Submit(ctx, file, token)
	if err != nil {
		return nil, err
	}
	logger = logger.With("job_id", jobID)

	if s.recorder != nil {
		if err := s.recorder.RecordJob(store.JobRecord{
			JobID:     jobID,
			SessionID: sessionID,
			FileName:  file.Name,
			Status:    string(extract.JobPending),
		}); err != nil {
			// History is best-effort; the upload itself is unaffected.
			logger.Warn("failed to record job", "error", err)
		}
	}

	// The backend persists jobs asynchronously after accepting the upload;
	// querying too early guarantees a 404. Skipped as soon as the caller
	// cancels.
	emit(Status{Stage: StageWaiting})
	if err := s.sleep(ctx, s.graceWait); err != nil {
		s.complete(jobID, string(extract.JobCancelled), 0)
		return nil, apierr.Wrap(apierr.KindCancelled, "", err)
	}

	result, err := s.poller.Poll(ctx, jobID, token, func(ev extract.Event) {
		if ev.Type == extract.EventAttempt {
			emit(Status{Stage: StagePolling, Attempt: ev.Attempt, MaxAttempts: ev.MaxAttempts})
		}
	})
	if err != nil {
		switch apierr.KindOf(err) {
		case apierr.KindCancelled:
			s.complete(jobID, string(extract.JobCancelled), 0)
		default:
			s.complete(jobID, string(extract.JobFailed), 0)
		}
		return nil, err
	}

	questions := make([]question.Question, len(result.Items))
	for i, item := range result.Items {
		questions[i] = item.Normalize()
	}

	s.complete(jobID, string(extract.JobReady), len(questions))
	emit(Status{Stage: StageReady})
	logger.Info("upload session finished", "questions", len(questions))

	return &UploadResult{
		SessionID: sessionID,
		JobID:     jobID,
		Questions: questions,
	}, nil
}

func (s *UploadService) complete(jobID, status string, itemsCount int) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.CompleteJob(jobID, status, itemsCount); err != nil {
		s.logger.Warn("failed to update job history", "job_id", jobID, "error", err)
	}
}

// retryable reports whether the whole sequence should re-run: the server
// said it is overloaded (503) or tripped over itself (500).
func retryable(err error) bool {
	if apierr.KindOf(err) != apierr.KindRemoteRejected {
		return false
	}
	status := apierr.StatusOf(err)
	return status == 500 || status == 503
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
