package domain

import (
	"context"
	"database/sql"
)

// Store is the unit of work the services operate through. Repositories
// obtained from a Store passed to WithTransaction's callback run inside
// that transaction.
type Store interface {
	Account() AccountRepository
	Posting() PostingRepository
	Customer() CustomerRepository
	Directory() DirectoryRepository
	WithTransaction(ctx context.Context, isolation sql.IsolationLevel, fn func(Store) error) error
}
