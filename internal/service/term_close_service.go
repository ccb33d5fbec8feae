package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusops/enrollment-api/internal/models"
	"github.com/campusops/enrollment-api/pkg/jobs"
)

const jobTypeTermClose = "term_close"

// TermCloser is the subset of the enrollment store the term-close worker needs.
type TermCloser interface {
	ListActive(ctx context.Context) ([]models.Enrollment, error)
	TransitionActive(ctx context.Context, id string, to models.EnrollmentState, at time.Time) (bool, error)
}

// TermCloseService completes every ACTIVE enrollment at the end of a term. The
// work runs asynchronously on the jobs queue so the triggering request returns
// immediately.
type TermCloseService struct {
	store  TermCloser
	cache  *CacheService
	queue  *jobs.Queue
	logger *zap.Logger
	now    func() time.Time
}

// NewTermCloseService constructs the service and its backing queue.
func NewTermCloseService(store TermCloser, cache *CacheService, logger *zap.Logger, cfg jobs.QueueConfig) *TermCloseService {
	s := &TermCloseService{
		store:  store,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("term-close", s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *TermCloseService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *TermCloseService) Stop() {
	s.queue.Stop()
}

// Enqueue schedules a term close run and returns its job id.
func (s *TermCloseService) Enqueue() (string, error) {
	id := uuid.NewString()
	if err := s.queue.Enqueue(jobs.Job{ID: id, Type: jobTypeTermClose}); err != nil {
		return "", err
	}
	s.logger.Info("term close scheduled", zap.String("job_id", id))
	return id, nil
}

// CloseTerm transitions every ACTIVE enrollment to COMPLETED and releases the
// seats. Enrollments closed concurrently by another writer are skipped.
func (s *TermCloseService) CloseTerm(ctx context.Context) (int, error) {
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	closedAt := s.now()
	closed := 0
	for _, enrollment := range active {
		next, err := models.Transition(enrollment.State, models.EnrollmentStateCompleted)
		if err != nil {
			s.logger.Warn("skipping enrollment with illegal transition",
				zap.String("enrollment_id", enrollment.ID),
				zap.Error(err))
			continue
		}
		committed, err := s.store.TransitionActive(ctx, enrollment.ID, next, closedAt)
		if err != nil {
			return closed, err
		}
		if committed {
			closed++
		}
	}

	if closed > 0 && s.cache != nil {
		_ = s.cache.Invalidate(ctx, statsCacheKey)
		_ = s.cache.Invalidate(ctx, availableCacheGlob)
	}

	s.logger.Info("term closed", zap.Int("active", len(active)), zap.Int("completed", closed))
	return closed, nil
}

func (s *TermCloseService) handle(ctx context.Context, job jobs.Job) error {
	if job.Type != jobTypeTermClose {
		s.logger.Warn("unknown job type", zap.String("type", job.Type))
		return nil
	}
	_, err := s.CloseTerm(ctx)
	return err
}
