package login

import (
	"context"
	"fmt"

	"github.com/mkarpov/keystash/internal/models"
)

// MakeVoucherKit resolves pending device-approval vouchers on one login
// node. Approved and rejected ids travel to the server; both sets disappear
// from the local voucher list either way.
func MakeVoucherKit(node *models.Tree, approved, rejected []string) Kit {
	resolved := make([]string, 0, len(approved)+len(rejected))
	resolved = append(resolved, approved...)
	resolved = append(resolved, rejected...)
	return Kit{
		LoginID:    node.LoginID,
		ServerPath: "/v2/login/vouchers",
		Server: ServerPatch{
			ApprovedVouchers: approved,
			RejectedVouchers: rejected,
		},
		Stash: StashPatch{RemoveVouchers: resolved},
		Login: TreePatch{RemoveVouchers: resolved},
	}
}

// ApproveVoucher lets a pending device in. The voucher must belong to the
// node identified by loginID somewhere in the tree.
func (c *Core) ApproveVoucher(ctx context.Context, tree *models.Tree, loginID []byte, voucherID string) error {
	return c.resolveVoucher(ctx, tree, loginID, voucherID, true)
}

// RejectVoucher turns a pending device away.
func (c *Core) RejectVoucher(ctx context.Context, tree *models.Tree, loginID []byte, voucherID string) error {
	return c.resolveVoucher(ctx, tree, loginID, voucherID, false)
}

func (c *Core) resolveVoucher(ctx context.Context, tree *models.Tree, loginID []byte, voucherID string, approve bool) error {
	node := models.SearchTree(tree, loginID)
	if node == nil {
		return fmt.Errorf("login %x is not part of this tree", loginID)
	}

	found := false
	for _, v := range node.PendingVouchers {
		if v.VoucherID == voucherID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no pending voucher %q on this login", voucherID)
	}

	var kit Kit
	if approve {
		kit = MakeVoucherKit(node, []string{voucherID}, nil)
	} else {
		kit = MakeVoucherKit(node, nil, []string{voucherID})
	}
	return c.applyKit(ctx, tree, kit)
}
