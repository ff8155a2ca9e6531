package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mygrades-api/pkg/config"
)

type fakeStaleRecordRepo struct {
	cutoff  time.Time
	removed int64
}

func (f *fakeStaleRecordRepo) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.removed, nil
}

func TestCleanupRunOnceUsesRetentionWindow(t *testing.T) {
	repo := &fakeStaleRecordRepo{removed: 42}
	svc := NewCleanupService(repo, config.CleanupConfig{
		Enabled:   true,
		Interval:  time.Hour,
		RetainFor: 48 * time.Hour,
	}, nil)

	removed, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), removed)

	expected := time.Now().UTC().Add(-48 * time.Hour)
	assert.WithinDuration(t, expected, repo.cutoff, time.Minute)
}

func TestCleanupDisabledDoesNotStart(t *testing.T) {
	repo := &fakeStaleRecordRepo{}
	svc := NewCleanupService(repo, config.CleanupConfig{Enabled: false, Interval: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	time.Sleep(10 * time.Millisecond)
	assert.True(t, repo.cutoff.IsZero())
}
