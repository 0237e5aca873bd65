package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/markwise/markwise-server/internal/store/model"
)

// Store bundles the pipeline's durable state. Transaction rebinds every
// repository to one database transaction; the storage layer's isolation
// is the pipeline's only synchronization primitive.
type Store interface {
	Ledger() Ledger
	Jobs() Jobs
	Failures() Failures
	Transaction(ctx context.Context, fn func(Store) error) error
	InitialMigration() error
	Ping(ctx context.Context) error
	Close() error
}

type DataStore struct {
	db       *gorm.DB
	ledger   Ledger
	jobs     Jobs
	failures Failures
}

// Make sure we conform to Store interface
var _ Store = (*DataStore)(nil)

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:       db,
		ledger:   NewLedgerStore(db),
		jobs:     NewJobStore(db),
		failures: NewFailureStore(db),
	}
}

func (s *DataStore) Ledger() Ledger     { return s.ledger }
func (s *DataStore) Jobs() Jobs         { return s.jobs }
func (s *DataStore) Failures() Failures { return s.failures }

func (s *DataStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(
		&model.LedgerAccount{},
		&model.GradingJob{},
		&model.FailureRecord{},
	)
}

func (s *DataStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
