package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/mygrades-api/internal/dto"
	"github.com/noah-isme/mygrades-api/internal/models"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
	"github.com/noah-isme/mygrades-api/pkg/jobs"
)

const jobTypeRecalculate = "recalculate"

type recalcAggregator interface {
	AggregateUser(ctx context.Context, courseID, userID string) ([]*models.AggregationResult, error)
	AggregateCategory(ctx context.Context, courseID, categoryID, userID string) (*models.AggregationResult, error)
}

type enrolmentRepo interface {
	ListActiveUsers(ctx context.Context, courseID string) ([]string, error)
}

// RecalcService runs bulk recalculations for a whole course on a worker
// pool. One job covers one course scope; the handler walks every active
// user and reports progress as it goes.
type RecalcService struct {
	aggregation recalcAggregator
	enrolments  enrolmentRepo
	progress    *ProgressService
	queue       *jobs.Queue
	logger      *zap.Logger
}

// NewRecalcService constructs the service and its backing queue.
func NewRecalcService(aggregation recalcAggregator, enrolments enrolmentRepo, progress *ProgressService, workers, retries int, logger *zap.Logger) *RecalcService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RecalcService{
		aggregation: aggregation,
		enrolments:  enrolments,
		progress:    progress,
		logger:      logger,
	}
	s.queue = jobs.NewQueue("recalculation", s.handle, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *RecalcService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *RecalcService) Stop() {
	s.queue.Stop()
}

// EnqueueCourse schedules a recalculation of every active user in the
// course. When categoryID is set only that category is recomputed,
// otherwise all top-level totals are.
func (s *RecalcService) EnqueueCourse(ctx context.Context, courseID, categoryID, requestedBy string) (*dto.RecalculateResponse, error) {
	users, err := s.enrolments.ListActiveUsers(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled users")
	}

	if err := s.progress.Begin(ctx, courseID, int64(len(users))); err != nil {
		s.logger.Warn("failed to initialise recalculation progress", zap.String("course_id", courseID), zap.Error(err))
	}

	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: jobTypeRecalculate,
		Payload: models.RecalcJobParams{
			CourseID:    courseID,
			CategoryID:  categoryID,
			RequestedBy: requestedBy,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue recalculation")
	}

	s.logger.Info("recalculation enqueued",
		zap.String("job_id", job.ID),
		zap.String("course_id", courseID),
		zap.String("category_id", categoryID),
		zap.String("requested_by", requestedBy),
		zap.Int("user_count", len(users)))

	return &dto.RecalculateResponse{JobID: job.ID, UserCount: len(users)}, nil
}

func (s *RecalcService) handle(ctx context.Context, job jobs.Job) error {
	params, ok := job.Payload.(models.RecalcJobParams)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}

	users, err := s.enrolments.ListActiveUsers(ctx, params.CourseID)
	if err != nil {
		return fmt.Errorf("list enrolled users: %w", err)
	}

	var failed int
	for _, userID := range users {
		if err := s.recalculateUser(ctx, params, userID); err != nil {
			failed++
			s.logger.Error("recalculation failed for user",
				zap.String("job_id", job.ID),
				zap.String("course_id", params.CourseID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
		s.progress.Increment(ctx, params.CourseID)
	}

	s.logger.Info("recalculation finished",
		zap.String("job_id", job.ID),
		zap.String("course_id", params.CourseID),
		zap.Int("user_count", len(users)),
		zap.Int("failed", failed))
	return nil
}

func (s *RecalcService) recalculateUser(ctx context.Context, params models.RecalcJobParams, userID string) error {
	if params.CategoryID != "" {
		_, err := s.aggregation.AggregateCategory(ctx, params.CourseID, params.CategoryID, userID)
		return err
	}
	_, err := s.aggregation.AggregateUser(ctx, params.CourseID, userID)
	return err
}
