package cli

import (
	"os"

	"github.com/fatih/color"
	"github.com/mkarpov/keystash/internal/models"
	"github.com/spf13/cobra"
)

func (a *App) otpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Manage two-factor authentication",
	}

	var timeout int
	enable := &cobra.Command{
		Use:   "enable",
		Short: "Turn on TOTP two-factor auth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogin(cmd.Context(), func(tree *models.Tree) error {
				sp, cleanup := startSpinner("Enabling two-factor auth...")
				defer cleanup()
				secret, err := a.core.EnableOtp(cmd.Context(), tree, timeout)
				if err != nil {
					sp.FinalMSG = explainLoginError(err)
					return nil
				}
				sp.FinalMSG = successMsg("two-factor auth enabled") + "\n" +
					"  add this secret to your authenticator app: " + color.YellowString(secret)
				return nil
			})
		},
	}
	enable.Flags().IntVar(&timeout, "timeout", 7*24*3600, "seconds the server waits before honoring a 2fa reset")
	cmd.AddCommand(enable)

	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Turn off two-factor auth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogin(cmd.Context(), func(tree *models.Tree) error {
				sp, cleanup := startSpinner("Disabling two-factor auth...")
				defer cleanup()
				if err := a.core.DisableOtp(cmd.Context(), tree); err != nil {
					sp.FinalMSG = explainLoginError(err)
					return nil
				}
				sp.FinalMSG = successMsg("two-factor auth disabled")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Request 2fa removal for a locked-out account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			username, err := GetSimpleText(a.reader, "Enter username", os.Stdout)
			if err != nil {
				return err
			}
			token, err := GetSimpleText(a.reader, "Enter the reset token from the failed login", os.Stdout)
			if err != nil {
				return err
			}

			sp, cleanup := startSpinner("Requesting 2fa reset...")
			defer cleanup()
			date, err := a.core.RequestOtpReset(ctx, username, token)
			if err != nil {
				sp.FinalMSG = explainLoginError(err)
				return nil
			}
			sp.FinalMSG = successMsg("reset scheduled, two-factor auth ends " + date.Format("2006-01-02 15:04"))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel-reset",
		Short: "Withdraw a pending 2fa reset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogin(cmd.Context(), func(tree *models.Tree) error {
				sp, cleanup := startSpinner("Cancelling 2fa reset...")
				defer cleanup()
				if err := a.core.CancelOtpReset(cmd.Context(), tree); err != nil {
					sp.FinalMSG = explainLoginError(err)
					return nil
				}
				sp.FinalMSG = successMsg("pending 2fa reset cancelled")
				return nil
			})
		},
	})

	return cmd
}
