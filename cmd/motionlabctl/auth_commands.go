package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/motionlab/backend/internal/flows"
	"github.com/motionlab/backend/internal/validate"
)

func newAuthCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newLoginCommand(ctx),
		newSignupCommand(ctx),
		newLogoutCommand(ctx),
		newWhoamiCommand(ctx),
		newResetPasswordCommand(ctx),
	}
}

// readPassword returns flagValue, or the first line of stdin when the flag is empty.
func readPassword(in io.Reader, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureSession(); err != nil {
				return err
			}
			pw, err := readPassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			out := flows.Login(callCtx, ctx.users, validate.Login{Email: email, Password: pw})
			if !out.OK() {
				return failure(out.Message, out.Errors)
			}
			state := ctx.users.State()
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", state.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (read from stdin when omitted)")
	return cmd
}

func newSignupCommand(ctx *commandContext) *cobra.Command {
	var form validate.Signup

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureSession(); err != nil {
				return err
			}
			pw, err := readPassword(cmd.InOrStdin(), form.Password)
			if err != nil {
				return err
			}
			signup := form
			signup.Password = pw
			if signup.ConfirmPassword == "" {
				signup.ConfirmPassword = pw
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			out := flows.Signup(callCtx, ctx.users, signup)
			if !out.OK() {
				return failure(out.Message, out.Errors)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s\n", ctx.users.State().User.FullName())
			return nil
		},
	}
	cmd.Flags().StringVar(&form.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&form.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&form.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "Password (read from stdin when omitted)")
	cmd.Flags().StringVar(&form.ConfirmPassword, "confirm-password", "", "Password confirmation (defaults to the password)")
	return cmd
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session and cached data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.ensureSession(); err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()
			if err := ctx.users.Logout(callCtx); err != nil {
				return err
			}

			projects, err := ctx.projectStore()
			if err != nil {
				return err
			}
			avatars, err := ctx.avatarStore()
			if err != nil {
				return err
			}
			if err := errors.Join(projects.Clear(), avatars.Clear()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.requireRoute("/profile"); err != nil {
				return err
			}
			state := ctx.users.State()
			if ctx.jsonOutput() {
				return writeJSON(cmd, state.User)
			}
			expires := time.UnixMilli(state.Expiry).Local().Format(time.RFC1123)
			rows := [][]string{
				{"Name", state.User.FullName()},
				{"Email", state.User.Email},
				{"Admin", yesNo(state.User.IsAdmin)},
				{"Session expires", expires},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}

func newResetPasswordCommand(ctx *commandContext) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Request a password reset email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if errs := validate.ValidatePasswordReset(email); !errs.OK() {
				return failure("", errs)
			}
			if err := ctx.ensureSession(); err != nil {
				return err
			}
			callCtx, cancel := ctx.callContext(cmd)
			defer cancel()

			resp := ctx.api.RequestPasswordReset(callCtx, email)
			if !resp.Success {
				return failure(resp.Message, resp.Errors)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If the address is registered, a reset link is on its way")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}
