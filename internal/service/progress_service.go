package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mygrades-api/internal/dto"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
)

type progressStore interface {
	SetCounter(ctx context.Context, key string, value int64, ttl time.Duration) error
	IncrCounter(ctx context.Context, key string, ttl time.Duration) error
	GetCounter(ctx context.Context, key string) (int64, error)
}

// ProgressService tracks bulk recalculation progress per course in
// Redis counters. Absence of counters reads as done = -1 so clients can
// tell "never started" from "started at zero".
type ProgressService struct {
	store  progressStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewProgressService constructs a progress service.
func NewProgressService(store progressStore, ttl time.Duration, logger *zap.Logger) *ProgressService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{store: store, ttl: ttl, logger: logger}
}

func progressDoneKey(courseID string) string {
	return fmt.Sprintf("recalc:progress:%s:done", courseID)
}

func progressTotalKey(courseID string) string {
	return fmt.Sprintf("recalc:progress:%s:total", courseID)
}

// Begin resets the counters for a new bulk run.
func (s *ProgressService) Begin(ctx context.Context, courseID string, total int64) error {
	if err := s.store.SetCounter(ctx, progressTotalKey(courseID), total, s.ttl); err != nil {
		return err
	}
	return s.store.SetCounter(ctx, progressDoneKey(courseID), 0, s.ttl)
}

// Increment bumps the done counter. Failures are logged, not fatal:
// progress reporting never blocks the recalculation itself.
func (s *ProgressService) Increment(ctx context.Context, courseID string) {
	if err := s.store.IncrCounter(ctx, progressDoneKey(courseID), s.ttl); err != nil {
		s.logger.Warn("progress increment failed", zap.String("course_id", courseID), zap.Error(err))
	}
}

// Get reports the current progress of a course's bulk run.
func (s *ProgressService) Get(ctx context.Context, courseID string) (*dto.ProgressResponse, error) {
	done, err := s.store.GetCounter(ctx, progressDoneKey(courseID))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return &dto.ProgressResponse{CourseID: courseID, Done: -1}, nil
		}
		return nil, err
	}
	total, err := s.store.GetCounter(ctx, progressTotalKey(courseID))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		return nil, err
	}
	return &dto.ProgressResponse{CourseID: courseID, Done: done, Total: total}, nil
}
