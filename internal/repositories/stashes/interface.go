// Package stashes persists login stashes in the local database, one document
// per normalized root username.
package stashes

import (
	"context"

	"github.com/mkarpov/keystash/internal/models"
)

// Repository defines stash storage operations.
//
// Contract:
//   - Get: return the stash cached for username, or a default empty-but-valid
//     stash with a blank loginId when none exists. It never fails on a miss.
//   - GetByID: locate a login node anywhere in any cached stash tree by
//     loginId, returning the node and its containing root. Fails with
//     common.ErrNotFound when absent.
//   - Save: persist a root stash keyed by its username, atomically replacing
//     any prior value. The document is fully encoded before any write, so a
//     partial write is never observable to subsequent reads.
//   - UpdateByID: locate a node like GetByID, apply fn to it, and persist the
//     containing root, all as one atomic read-modify-write. An error from fn
//     aborts the update without persisting anything.
//   - Delete: remove the cached stash for username (local account removal).
//
// All methods must honor context cancellation.
type Repository interface {
	Get(ctx context.Context, username string) (*models.Stash, error)
	GetByID(ctx context.Context, loginID []byte) (node, root *models.Stash, err error)
	Save(ctx context.Context, stash *models.Stash) error
	UpdateByID(ctx context.Context, loginID []byte, fn func(node, root *models.Stash) error) error
	Delete(ctx context.Context, username string) error
	List(ctx context.Context) ([]*models.Stash, error)
}
