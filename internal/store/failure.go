package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/markwise/markwise-server/internal/core"
	"github.com/markwise/markwise-server/internal/store/model"
)

// Failures is the append-only diagnostic store. Writes happen outside
// the settlement transaction and are allowed to fail; reads serve
// operator tooling only.
type Failures interface {
	Append(ctx context.Context, rec *core.FailureRecord) error
	List(ctx context.Context, limit int) ([]core.FailureRecord, error)
	ListByJob(ctx context.Context, jobID string) ([]core.FailureRecord, error)
}

type FailureStore struct {
	db *gorm.DB
}

var _ Failures = (*FailureStore)(nil)

func NewFailureStore(db *gorm.DB) Failures {
	return &FailureStore{db: db}
}

func (s *FailureStore) Append(ctx context.Context, rec *core.FailureRecord) error {
	row := model.FailureRecord{
		JobID:      rec.JobID,
		UserID:     rec.UserID,
		RawMessage: rec.RawMessage,
		Stack:      rec.Stack,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *FailureStore) List(ctx context.Context, limit int) ([]core.FailureRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []model.FailureRecord
	result := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return toCoreFailures(rows), nil
}

func (s *FailureStore) ListByJob(ctx context.Context, jobID string) ([]core.FailureRecord, error) {
	var rows []model.FailureRecord
	result := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return toCoreFailures(rows), nil
}

func toCoreFailures(rows []model.FailureRecord) []core.FailureRecord {
	records := make([]core.FailureRecord, 0, len(rows))
	for i := range rows {
		records = append(records, *rows[i].ToCore())
	}
	return records
}
