package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"branch-ledger/internal/domain"
	"branch-ledger/internal/errors"
)

// Store provides a unified interface for all repository operations with transaction support
type Store struct {
	executor SQLExecutor
	logger   *slog.Logger
}

var _ domain.Store = (*Store)(nil)

// NewStore creates a new Store instance
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		executor: db,
		logger:   logger,
	}
}

// Account returns an AccountRepository using the current executor
func (s *Store) Account() domain.AccountRepository {
	return NewAccountRepository(s.executor, s.logger)
}

// Posting returns a PostingRepository using the current executor
func (s *Store) Posting() domain.PostingRepository {
	return NewPostingRepository(s.executor, s.logger)
}

// Customer returns a CustomerRepository using the current executor
func (s *Store) Customer() domain.CustomerRepository {
	return NewCustomerRepository(s.executor, s.logger)
}

// Directory returns a DirectoryRepository using the current executor
func (s *Store) Directory() domain.DirectoryRepository {
	return NewDirectoryRepository(s.executor, s.logger)
}

// WithTransaction executes fn within a database transaction at the given
// isolation level. The transaction is rolled back when fn fails, panics or
// ctx is cancelled; a commit rejected by the serializable scheduler is
// reported as errors.ErrSerializationFailure.
func (s *Store) WithTransaction(ctx context.Context, isolation sql.IsolationLevel, fn func(domain.Store) error) error {
	// Only sql.DB can begin transactions
	db, ok := s.executor.(DB)
	if !ok {
		return errors.ErrCannotBeginTransaction
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return translate(err, "failed to begin transaction")
	}

	txStore := &Store{
		executor: tx,
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Warn("Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return translate(err, "failed to commit transaction")
	}
	return nil
}
