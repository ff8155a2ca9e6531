package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mygrades-api/pkg/config"
)

type staleRecordRepo interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService purges superseded machine-written category records
// once they age past the retention window. Only retired aggregation
// rows are touched; anything a person entered stays in the ledger.
type CleanupService struct {
	records staleRecordRepo
	cfg     config.CleanupConfig
	logger  *zap.Logger
}

// NewCleanupService constructs a cleanup service.
func NewCleanupService(records staleRecordRepo, cfg config.CleanupConfig, logger *zap.Logger) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupService{records: records, cfg: cfg, logger: logger}
}

// Start boots a goroutine that purges stale records periodically.
func (s *CleanupService) Start(ctx context.Context) {
	if !s.cfg.Enabled || s.cfg.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.logger.Warn("stale record cleanup failed", zap.Error(err))
				}
			}
		}
	}()
}

// RunOnce deletes retired aggregation records older than the retention
// window and reports how many rows went.
func (s *CleanupService) RunOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.RetainFor)
	removed, err := s.records.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("purged stale aggregation records",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff))
	}
	return removed, nil
}
