package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/models"
	"github.com/spf13/cobra"
)

func (a *App) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in with username and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogin(cmd.Context(), func(tree *models.Tree) error {
				printAccountSummary(tree)
				return nil
			})
		},
	}
}

func (a *App) pinLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in with the PIN cached on this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			username, err := GetSimpleText(a.reader, "Enter username", os.Stdout)
			if err != nil {
				return err
			}
			pin, err := GetPassword("Enter PIN", os.Stdout)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pin)

			sp, cleanup := startSpinner("Logging in...")
			defer cleanup()

			tree, err := a.core.LoginPin2(ctx, username, string(pin))
			if err != nil {
				sp.FinalMSG = explainLoginError(err)
				return nil
			}
			defer tree.Wipe()
			sp.Stop()
			printAccountSummary(tree)
			return nil
		},
	}
}

func printAccountSummary(tree *models.Tree) {
	fmt.Println(successMsg("logged in as " + color.YellowString(tree.Username)))
	if len(tree.KeyInfos) > 0 {
		fmt.Printf("  wallet keys: %d\n", len(tree.KeyInfos))
	}
	if tree.OtpKey != "" {
		fmt.Println("  two-factor auth: on")
	}
	if tree.OtpResetDate != nil {
		fmt.Println(color.YellowString("  a 2fa reset is pending, effective " + tree.OtpResetDate.Format("2006-01-02 15:04")))
	}
	for _, child := range tree.Children {
		fmt.Printf("  child login: %s\n", child.AppID)
	}
	printVouchers(tree)
}

func printVouchers(tree *models.Tree) {
	if len(tree.PendingVouchers) == 0 {
		return
	}
	fmt.Println(color.YellowString("  pending device approvals:"))
	for _, v := range tree.PendingVouchers {
		desc := v.DeviceDescription
		if desc == "" {
			desc = "unknown device"
		}
		fmt.Printf("    %s  %s (%s, %s)\n", v.VoucherID, desc, v.IP, v.IPDescription)
	}
}
