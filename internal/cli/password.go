package cli

import (
	"os"

	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/models"
	"github.com/spf13/cobra"
)

func (a *App) passwordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage the password factor",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "change",
		Short: "Rotate the account password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogin(cmd.Context(), func(tree *models.Tree) error {
				next, err := GetPassword("New password", os.Stdout)
				if err != nil {
					return err
				}
				defer common.WipeByteArray(next)
				confirm, err := GetPassword("Repeat new password", os.Stdout)
				if err != nil {
					return err
				}
				defer common.WipeByteArray(confirm)
				if string(next) != string(confirm) {
					cmd.Println(failMsg("passwords do not match"))
					return nil
				}

				sp, cleanup := startSpinner("Changing password...")
				defer cleanup()
				if err := a.core.ChangePassword(cmd.Context(), tree, string(next)); err != nil {
					sp.FinalMSG = explainLoginError(err)
					return nil
				}
				sp.FinalMSG = successMsg("password changed")
				return nil
			})
		},
	})
	return cmd
}
