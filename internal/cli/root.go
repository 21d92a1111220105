package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Root builds the command tree.
func (a *App) Root() *cobra.Command {
	root := &cobra.Command{
		Use:           "keystash",
		Short:         "Client-side account and key management",
		Long:          "keystash manages end-to-end encrypted accounts: registration, login factors, two-factor auth, and device approval.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.passwordCmd(),
		a.pinCmd(),
		a.recoveryCmd(),
		a.otpCmd(),
		a.voucherCmd(),
		a.usernameCmd(),
		a.accountCmd(),
	)
	return root
}

// Run executes the CLI and reports the exit code.
func (a *App) Run(ctx context.Context) int {
	if err := a.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, failMsg(err.Error()))
		return 1
	}
	return 0
}
