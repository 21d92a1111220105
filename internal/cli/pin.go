package cli

import (
	"os"

	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/models"
	"github.com/spf13/cobra"
)

func (a *App) pinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Manage PIN login on this device",
	}

	cmd.AddCommand(a.pinLoginCmd())

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Set or change the PIN",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogin(cmd.Context(), func(tree *models.Tree) error {
				pin, err := GetPassword("New PIN (at least 4 digits)", os.Stdout)
				if err != nil {
					return err
				}
				defer common.WipeByteArray(pin)

				sp, cleanup := startSpinner("Setting PIN...")
				defer cleanup()
				if err := a.core.ChangePin(cmd.Context(), tree, string(pin)); err != nil {
					sp.FinalMSG = explainLoginError(err)
					return nil
				}
				sp.FinalMSG = successMsg("PIN login enabled on this device")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Remove PIN login from the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogin(cmd.Context(), func(tree *models.Tree) error {
				sp, cleanup := startSpinner("Disabling PIN...")
				defer cleanup()
				if err := a.core.DisablePin(cmd.Context(), tree); err != nil {
					sp.FinalMSG = explainLoginError(err)
					return nil
				}
				sp.FinalMSG = successMsg("PIN login disabled")
				return nil
			})
		},
	})

	return cmd
}
