package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/markwise/markwise-server/internal/core"
	"github.com/markwise/markwise-server/internal/scheduler"
	"github.com/markwise/markwise-server/internal/store"
)

func newTestDB(t *testing.T) (store.Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := store.NewStore(db)
	require.NoError(t, s.InitialMigration())
	t.Cleanup(func() { _ = s.Close() })
	return s, db
}

type recordingAnnouncer struct {
	announced []string
}

func (a *recordingAnnouncer) Announce(jobID string) error {
	a.announced = append(a.announced, jobID)
	return nil
}

func createJob(t *testing.T, s store.Store, queuedAt time.Time) *core.Job {
	t.Helper()
	job := &core.Job{
		ID:            core.NewID(),
		EssayID:       "essay-1",
		UserID:        "user-1",
		Status:        core.StatusQueued,
		QueuedAt:      queuedAt,
		ReservedCents: 100,
	}
	sub := &core.Submission{EssayID: "essay-1", UserID: "user-1", EssayText: "x", Brief: "y"}
	cfg := &core.GradingConfig{Runs: []core.ModelRun{{Model: "gpt-4o-mini", Temperature: 0.3}}}
	require.NoError(t, s.Jobs().Create(context.Background(), job, sub, cfg))
	return job
}

func TestScanReannouncesStaleQueued(t *testing.T) {
	s, _ := newTestDB(t)
	ctx := context.Background()

	stale := createJob(t, s, time.Now().Add(-20*time.Minute))
	createJob(t, s, time.Now()) // fresh

	announcer := &recordingAnnouncer{}
	r := scheduler.New(s, announcer, scheduler.Options{})

	require.NoError(t, r.Scan(ctx))
	assert.Equal(t, []string{stale.ID}, announcer.announced)

	// A stale queued job stays queued; only the announcement is replayed.
	got, err := s.Jobs().Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusQueued, got.Status)
}

func TestScanRequeuesCrashedProcessing(t *testing.T) {
	s, db := newTestDB(t)
	ctx := context.Background()

	job := createJob(t, s, time.Now().Add(-2*time.Hour))
	claimed, err := s.Jobs().Claim(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, db.Exec("UPDATE grading_jobs SET started_at = ? WHERE id = ?", old, job.ID).Error)

	announcer := &recordingAnnouncer{}
	r := scheduler.New(s, announcer, scheduler.Options{})

	require.NoError(t, r.Scan(ctx))
	assert.Equal(t, []string{job.ID}, announcer.announced)

	got, err := s.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusQueued, got.Status)
	assert.Nil(t, got.StartedAt)
}

func TestScanIgnoresFreshProcessing(t *testing.T) {
	s, _ := newTestDB(t)
	ctx := context.Background()

	job := createJob(t, s, time.Now().Add(-20*time.Minute))
	claimed, err := s.Jobs().Claim(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	announcer := &recordingAnnouncer{}
	r := scheduler.New(s, announcer, scheduler.Options{})

	require.NoError(t, r.Scan(ctx))
	assert.Empty(t, announcer.announced)

	got, err := s.Jobs().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, got.Status)
}

func TestReaperStartStop(t *testing.T) {
	s, _ := newTestDB(t)
	r := scheduler.New(s, &recordingAnnouncer{}, scheduler.Options{Interval: time.Hour})

	require.NoError(t, r.Start())
	r.Stop()
	// Stop is idempotent.
	r.Stop()
}
