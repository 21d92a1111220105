package cli

import (
	"github.com/mkarpov/keystash/internal/models"
	"github.com/spf13/cobra"
)

func (a *App) voucherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voucher",
		Short: "Approve or reject logins from new devices",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending device approvals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogin(cmd.Context(), func(tree *models.Tree) error {
				if len(tree.PendingVouchers) == 0 {
					cmd.Println(successMsg("no pending device approvals"))
					return nil
				}
				printVouchers(tree)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "approve <voucher-id>",
		Short: "Let a pending device in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogin(cmd.Context(), func(tree *models.Tree) error {
				sp, cleanup := startSpinner("Approving device...")
				defer cleanup()
				if err := a.core.ApproveVoucher(cmd.Context(), tree, tree.LoginID, args[0]); err != nil {
					sp.FinalMSG = explainLoginError(err)
					return nil
				}
				sp.FinalMSG = successMsg("device approved")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reject <voucher-id>",
		Short: "Turn a pending device away",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogin(cmd.Context(), func(tree *models.Tree) error {
				sp, cleanup := startSpinner("Rejecting device...")
				defer cleanup()
				if err := a.core.RejectVoucher(cmd.Context(), tree, tree.LoginID, args[0]); err != nil {
					sp.FinalMSG = explainLoginError(err)
					return nil
				}
				sp.FinalMSG = successMsg("device rejected")
				return nil
			})
		},
	})

	return cmd
}
