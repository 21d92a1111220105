package stashes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/dbx"
	"github.com/mkarpov/keystash/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get loads the stash for username, or returns a blank stash when none is
// cached. A malformed stored document is an error, not a silent default.
func (r *SQLiteRepository) Get(ctx context.Context, username string) (*models.Stash, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM stashes WHERE username = ?`, username).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Stash{Username: username}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stash for %q: %w", username, err)
	}

	stash, err := models.DecodeStash(data)
	if err != nil {
		return nil, fmt.Errorf("corrupt stash for %q: %w", username, err)
	}
	return stash, nil
}

// GetByID tree-searches every cached stash for the given loginId.
func (r *SQLiteRepository) GetByID(ctx context.Context, loginID []byte) (*models.Stash, *models.Stash, error) {
	roots, err := r.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, root := range roots {
		if node := models.SearchStash(root, loginID); node != nil {
			return node, root, nil
		}
	}
	return nil, nil, common.ErrNotFound
}

// Save upserts the stash keyed by its username. Encoding happens before the
// write, so a failed encode leaves the prior document untouched.
func (r *SQLiteRepository) Save(ctx context.Context, stash *models.Stash) error {
	if stash.Username == "" {
		return fmt.Errorf("cannot save a stash without a username")
	}
	data, err := stash.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode stash for %q: %w", stash.Username, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO stashes (username, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(username) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, stash.Username, data)
	if err != nil {
		return fmt.Errorf("failed to upsert stash for %q: %w", stash.Username, err)
	}
	return nil
}

// UpdateByID applies fn to the node with loginID and persists the containing
// root. When bound to a *sql.DB the read-modify-write runs inside a
// transaction; when already bound to a transaction, it joins it.
func (r *SQLiteRepository) UpdateByID(ctx context.Context, loginID []byte, fn func(node, root *models.Stash) error) error {
	apply := func(ctx context.Context, repo *SQLiteRepository) error {
		node, root, err := repo.GetByID(ctx, loginID)
		if err != nil {
			return err
		}
		if err := fn(node, root); err != nil {
			return err
		}
		return repo.Save(ctx, root)
	}

	if db, ok := r.db.(*sql.DB); ok {
		return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return apply(ctx, NewSQLiteRepository(tx))
		})
	}
	return apply(ctx, r)
}

// Delete removes the cached stash for username. Deleting a missing stash is
// not an error.
func (r *SQLiteRepository) Delete(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM stashes WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("failed to delete stash for %q: %w", username, err)
	}
	return nil
}

// List returns every cached root stash.
func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Stash, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM stashes`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stashes: %w", err)
	}
	defer rows.Close()

	var result []*models.Stash
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		stash, err := models.DecodeStash(data)
		if err != nil {
			return nil, fmt.Errorf("corrupt stash document: %w", err)
		}
		result = append(result, stash)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
