package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func (a *App) usernameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "username",
		Short: "Username utilities",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <username>",
		Short: "Check whether a username is free to register",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, cleanup := startSpinner("Checking availability...")
			defer cleanup()

			free, err := a.core.UsernameAvailable(cmd.Context(), args[0])
			if err != nil {
				sp.FinalMSG = explainLoginError(err)
				return nil
			}
			if free {
				sp.FinalMSG = successMsg(color.YellowString(args[0]) + " is available")
			} else {
				sp.FinalMSG = failMsg(color.YellowString(args[0]) + " is taken")
			}
			return nil
		},
	})

	return cmd
}

func (a *App) accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Local account management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <username>",
		Short: "Remove the locally cached account data",
		Long:  "Removes the local stash for the account. The account itself stays on the server; logging in again re-caches it. PIN login stops working on this device until then.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.core.DeleteStash(cmd.Context(), args[0]); err != nil {
				cmd.Println(explainLoginError(err))
				return nil
			}
			cmd.Println(successMsg("local data for " + color.YellowString(args[0]) + " removed"))
			return nil
		},
	})

	return cmd
}
