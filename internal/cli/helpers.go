package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mkarpov/keystash/internal/api"
	"github.com/mkarpov/keystash/internal/common"
	"github.com/mkarpov/keystash/internal/models"
)

// startSpinner shows a progress spinner for network round trips. The cleanup
// stops it and prints any final message set on the spinner.
func startSpinner(message string) (*spinner.Spinner, func()) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	_ = s.Color("cyan")
	s.Start()

	cleanup := func() {
		s.Stop()
		if s.FinalMSG != "" {
			fmt.Println(s.FinalMSG)
		}
	}
	return s, cleanup
}

func successMsg(msg string) string {
	return color.GreenString("✓") + " " + msg
}

func failMsg(msg string) string {
	return color.RedString("✗") + " " + msg
}

// explainLoginError renders the typed login error taxonomy for humans.
func explainLoginError(err error) string {
	var pwErr *api.PasswordError
	var userErr *api.UsernameError
	var otpErr *api.OtpError
	var netErr *api.NetworkError

	switch {
	case errors.As(err, &pwErr):
		if pwErr.Wait > 0 {
			return failMsg(fmt.Sprintf("wrong credentials, locked for %d seconds", pwErr.Wait))
		}
		return failMsg("wrong credentials")
	case errors.As(err, &userErr):
		return failMsg("no such account")
	case errors.As(err, &otpErr):
		msg := failMsg("a second factor is required on this device")
		if otpErr.ResetToken != "" {
			msg += "\n" + color.CyanString("→") + " run " + color.YellowString("keystash otp reset") + " to request 2fa removal"
		}
		return msg
	case errors.As(err, &netErr):
		return failMsg("auth server unreachable: " + netErr.Error())
	case errors.Is(err, common.ErrInvalidUsername):
		return failMsg("invalid username: " + err.Error())
	default:
		return failMsg(err.Error())
	}
}

// promptLogin asks for username and password and performs a password login.
// The password bytes are wiped before returning.
func (a *App) promptLogin(ctx context.Context) (*models.Tree, error) {
	username, err := GetSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return nil, err
	}
	password, err := GetPassword("Enter password", os.Stdout)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(password)

	sp, cleanup := startSpinner("Logging in...")
	defer cleanup()

	tree, err := a.core.LoginPassword(ctx, username, string(password))
	if err != nil {
		sp.FinalMSG = explainLoginError(err)
		return nil, err
	}
	return tree, nil
}

// withLogin runs fn with a freshly authenticated tree and wipes it after.
func (a *App) withLogin(ctx context.Context, fn func(tree *models.Tree) error) error {
	tree, err := a.promptLogin(ctx)
	if err != nil {
		return nil
	}
	defer tree.Wipe()
	return fn(tree)
}
