package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mkarpov/keystash/internal/login"
	"github.com/mkarpov/keystash/internal/models"
	"github.com/spf13/cobra"
)

func (a *App) recoveryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Manage recovery questions",
	}
	cmd.AddCommand(a.recoverySetupCmd(), a.recoveryLoginCmd(), a.recoveryDisableCmd())
	return cmd
}

func (a *App) recoverySetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Install recovery questions and print the recovery token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogin(cmd.Context(), func(tree *models.Tree) error {
				questions, err := GetLines(a.reader, "Enter recovery questions, one per line", os.Stdout)
				if err != nil {
					return err
				}
				var answers []string
				for _, q := range questions {
					answer, err := GetSimpleText(a.reader, q, os.Stdout)
					if err != nil {
						return err
					}
					answers = append(answers, answer)
				}

				sp, cleanup := startSpinner("Installing recovery questions...")
				defer cleanup()
				token, err := a.core.SetupRecovery(cmd.Context(), tree, questions, answers)
				if err != nil {
					sp.FinalMSG = explainLoginError(err)
					return nil
				}
				sp.FinalMSG = successMsg("recovery enabled") + "\n" +
					color.YellowString("  write down this token, it is required to recover: ") + token
				return nil
			})
		},
	}
}

func (a *App) recoveryLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Recover an account with the token and answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			username, err := GetSimpleText(a.reader, "Enter username", os.Stdout)
			if err != nil {
				return err
			}
			token, err := GetSimpleText(a.reader, "Enter recovery token", os.Stdout)
			if err != nil {
				return err
			}
			recovery2Key, err := login.DecodeRecoveryKey(token)
			if err != nil {
				fmt.Println(failMsg(err.Error()))
				return nil
			}

			sp, cleanup := startSpinner("Fetching questions...")
			questions, err := a.core.GetRecoveryQuestions(ctx, username, recovery2Key)
			if err != nil {
				sp.FinalMSG = explainLoginError(err)
				cleanup()
				return nil
			}
			cleanup()

			var answers []string
			for _, q := range questions {
				answer, err := GetSimpleText(a.reader, q, os.Stdout)
				if err != nil {
					return err
				}
				answers = append(answers, answer)
			}

			sp, cleanup = startSpinner("Recovering account...")
			defer cleanup()
			tree, err := a.core.LoginRecovery2(ctx, username, recovery2Key, answers)
			if err != nil {
				sp.FinalMSG = explainLoginError(err)
				return nil
			}
			defer tree.Wipe()
			sp.Stop()
			printAccountSummary(tree)
			fmt.Println(color.CyanString("→") + " set a new password now with " + color.YellowString("keystash password change"))
			return nil
		},
	}
}

func (a *App) recoveryDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Remove the recovery factor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLogin(cmd.Context(), func(tree *models.Tree) error {
				sp, cleanup := startSpinner("Disabling recovery...")
				defer cleanup()
				if err := a.core.DisableRecovery(cmd.Context(), tree); err != nil {
					sp.FinalMSG = explainLoginError(err)
					return nil
				}
				sp.FinalMSG = successMsg("recovery disabled, the old token is now useless")
				return nil
			})
		},
	}
}
