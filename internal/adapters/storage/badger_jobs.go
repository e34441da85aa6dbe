package storage

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/xjson"
)

const jobKeyPrefix = "job:"

// BadgerJobStore persists job instances in an embedded badger database so
// that pending timers survive process restarts.
type BadgerJobStore struct {
	db     *badger.DB
	logger *slog.Logger
}

func NewBadgerJobStore(db *badger.DB, logger *slog.Logger) *BadgerJobStore {
	return &BadgerJobStore{
		db:     db,
		logger: logger.With("component", "badger-job-store"),
	}
}

// OpenBadgerJobStore opens (or creates) a badger database at dir and wraps it
// in a job store. The caller owns Close.
func OpenBadgerJobStore(dir string, logger *slog.Logger) (*BadgerJobStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return NewBadgerJobStore(db, logger), nil
}

func (s *BadgerJobStore) Persist(job *domain.JobInstance) error {
	value, err := xjson.Marshal(job)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(jobKey(job.ID), value)
	})
}

func (s *BadgerJobStore) FindByID(id string) (*domain.JobInstance, error) {
	var job *domain.JobInstance

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(value []byte) error {
			decoded := &domain.JobInstance{}
			if err := xjson.Unmarshal(value, decoded); err != nil {
				return err
			}
			job = decoded
			return nil
		})
	})

	return job, err
}

func (s *BadgerJobStore) DeleteByID(id string) (bool, error) {
	existed := false

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(jobKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		existed = true
		return txn.Delete(jobKey(id))
	})

	return existed, err
}

func (s *BadgerJobStore) LoadJobsDueBefore(deadline time.Time) ([]*domain.JobInstance, error) {
	var due []*domain.JobInstance

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				job := &domain.JobInstance{}
				if err := xjson.Unmarshal(value, job); err != nil {
					s.logger.Warn("skipping corrupted job record",
						"key", string(it.Item().Key()),
						"error", err)
					return nil
				}
				if job.ExpirationTime.Before(deadline) {
					due = append(due, job)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return due, err
}

// AcquireJob reads the job inside a write transaction, giving the caller's
// compare-and-transition the same exclusivity a relational row lock would.
func (s *BadgerJobStore) AcquireJob(id string) (*domain.JobInstance, error) {
	var job *domain.JobInstance

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(value []byte) error {
			decoded := &domain.JobInstance{}
			if err := xjson.Unmarshal(value, decoded); err != nil {
				return err
			}
			job = decoded
			return nil
		})
	})

	return job, err
}

func (s *BadgerJobStore) Close() error {
	return s.db.Close()
}

func jobKey(id string) []byte {
	return []byte(jobKeyPrefix + id)
}
