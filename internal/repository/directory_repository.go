package repository

import (
	"context"
	"log/slog"

	"branch-ledger/internal/domain"
)

type directoryRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewDirectoryRepository(db SQLExecutor, logger *slog.Logger) domain.DirectoryRepository {
	return &directoryRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertBranch inserts the branch or, when its code exists, renames it and
// loads the stored id into branch.
func (r *directoryRepository) UpsertBranch(ctx context.Context, branch *domain.Branch) error {
	query := `
		INSERT INTO branches (id, code, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`

	if err := r.db.QueryRowContext(ctx, query, branch.ID, branch.Code, branch.Name).Scan(&branch.ID); err != nil {
		r.logger.Error("Failed to upsert branch", "code", branch.Code, "error", err)
		return translate(err, "failed to upsert branch")
	}
	return nil
}

// UpsertUser inserts the user or leaves an existing record with the same
// email untouched, loading its id into user.
func (r *directoryRepository) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, role, branch_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`

	if err := r.db.QueryRowContext(ctx, query, user.ID, user.Email, user.Name, user.Role, user.BranchID).Scan(&user.ID); err != nil {
		r.logger.Error("Failed to upsert user", "email", user.Email, "error", err)
		return translate(err, "failed to upsert user")
	}
	return nil
}
