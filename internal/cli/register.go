package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/login"
	"github.com/mkarpov/keystash/internal/models"
	"github.com/spf13/cobra"
)

func (a *App) registerCmd() *cobra.Command {
	var withPin bool
	var walletType string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			username, err := GetSimpleText(a.reader, "Choose a username", os.Stdout)
			if err != nil {
				return err
			}

			free, err := a.core.UsernameAvailable(ctx, username)
			if err != nil {
				fmt.Println(explainLoginError(err))
				return nil
			}
			if !free {
				fmt.Println(failMsg("that username is taken"))
				return nil
			}

			password, err := GetPassword("Choose a password", os.Stdout)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			opts := login.CreateOpts{Password: string(password)}
			if withPin {
				pin, err := GetPassword("Choose a PIN (at least 4 digits)", os.Stdout)
				if err != nil {
					return err
				}
				opts.Pin = string(pin)
				common.WipeByteArray(pin)
			}
			var key models.KeyInfo
			if walletType != "" {
				if key, err = login.NewWalletKey(walletType); err != nil {
					return err
				}
				opts.KeyInfo = &key
			}

			sp, cleanup := startSpinner("Creating account...")
			defer cleanup()

			tree, err := a.core.CreateLogin(ctx, username, opts)
			if err != nil {
				sp.FinalMSG = explainLoginError(err)
				return nil
			}
			defer tree.Wipe()

			msg := successMsg("account " + color.YellowString(tree.Username) + " created")
			if walletType != "" {
				msg += "\n" + successMsg("wallet key "+key.ID+" attached")
			}
			sp.FinalMSG = msg
			return nil
		},
	}

	cmd.Flags().BoolVar(&withPin, "pin", false, "also set up PIN login")
	cmd.Flags().StringVar(&walletType, "wallet", "", "attach a fresh wallet key of this type")
	return cmd
}
