package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/aussiebroadwan/clubhouse/internal/console"
	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
)

func registerCommands(r *CommandRegistry) {
	for _, cmd := range []*Command{
		registerCmd(), verifyEmailCmd(), loginCmd(), logoutCmd(), whoamiCmd(),
		profileCmd(), changePasswordCmd(), forgotPasswordCmd(), resetPasswordCmd(),
		usersCmd(), setRoleCmd(), setStatusCmd(), versionCmd(),
	} {
		r.Register(cmd)
	}
}

// withConsole opens the configured backend, runs fn and closes everything.
func withConsole(configPath string, fn func(ctx context.Context, c *console.Console) error) error {
	cfg, err := console.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := console.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	return fn(ctx, c)
}

// report prints the outcome of a call. Failures become the command error so
// main exits non-zero.
func report[T any](env *Env, res authsdk.Result[T], success string) error {
	if !res.Success {
		return res.Err()
	}
	fmt.Fprintln(env.Out, success)
	return nil
}

// readSecret returns value, or the next line of stdin when value is empty.
func readSecret(env *Env, value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(env.Err, "%s: ", prompt)
	line, err := bufio.NewReader(env.In).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(prompt), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func requireArgs(cmd *Command, got []string, n int) error {
	if len(got) != n {
		return fmt.Errorf("%s: expected %d argument(s), got %d (usage: %s)", cmd.Name, n, len(got), cmd.Usage)
	}
	return nil
}

func printUser(env *Env, u authsdk.User) {
	fmt.Fprintf(env.Out, "ID:        %s\n", u.ID)
	fmt.Fprintf(env.Out, "Email:     %s\n", u.Email)
	if u.FullName != "" {
		fmt.Fprintf(env.Out, "Name:      %s\n", u.FullName)
	}
	if u.Phone != "" {
		fmt.Fprintf(env.Out, "Phone:     %s\n", u.Phone)
	}
	fmt.Fprintf(env.Out, "Role:      %s\n", u.Role)
	fmt.Fprintf(env.Out, "Status:    %s\n", u.Status)
	if u.LastLogin != nil {
		fmt.Fprintf(env.Out, "LastLogin: %s\n", u.LastLogin.Format(time.RFC3339))
	}
}

func registerCmd() *Command {
	cmd := &Command{
		Name:        "register",
		Description: "Create a new member account",
		Usage:       "clubctl register [-name NAME] [-phone PHONE] [-password PW] <email>",
		Examples:    []string{"clubctl register -name 'Ada Lovelace' ada@example.org"},
	}
	cmd.Run = func(env *Env, args []string) error {
		fs, config := cmd.NewFlagSet(env)
		name := fs.String("name", "", "Full name")
		phone := fs.String("phone", "", "Phone number")
		password := fs.String("password", "", "Password (read from stdin when omitted)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := requireArgs(cmd, fs.Args(), 1); err != nil {
			return err
		}
		pw, err := readSecret(env, *password, "Password")
		if err != nil {
			return err
		}

		return withConsole(*config, func(ctx context.Context, c *console.Console) error {
			res := c.Service.Register(ctx, authsdk.RegisterRequest{
				Email:    fs.Arg(0),
				Password: pw,
				FullName: *name,
				Phone:    *phone,
			})
			if !res.Success {
				return res.Err()
			}
			fmt.Fprintf(env.Out, "Registered %s (user %s). Verify the email address before signing in.\n", fs.Arg(0), res.Payload.UserID)
			if res.Payload.VerificationToken != "" {
				fmt.Fprintf(env.Out, "Verification token: %s\n", res.Payload.VerificationToken)
			}
			return nil
		})
	}
	return cmd
}

func verifyEmailCmd() *Command {
	cmd := &Command{
		Name:        "verify-email",
		Description: "Confirm an email address with a verification token",
		Usage:       "clubctl verify-email <token>",
	}
	cmd.Run = func(env *Env, args []string) error {
		fs, config := cmd.NewFlagSet(env)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := requireArgs(cmd, fs.Args(), 1); err != nil {
			return err
		}
		return withConsole(*config, func(ctx context.Context, c *console.Console) error {
			return report(env, c.Service.VerifyEmail(ctx, fs.Arg(0)), "Email verified. You can now sign in.")
		})
	}
	return cmd
}

func loginCmd() *Command {
	cmd := &Command{
		Name:        "login",
		Description: "Sign in and save the session",
		Usage:       "clubctl login [-password PW] <email>",
	}
	cmd.Run = func(env *Env, args []string) error {
		fs, config := cmd.NewFlagSet(env)
		password := fs.String("password", "", "Password (read from stdin when omitted)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := requireArgs(cmd, fs.Args(), 1); err != nil {
			return err
		}
		pw, err := readSecret(env, *password, "Password")
		if err != nil {
			return err
		}
		return withConsole(*config, func(ctx context.Context, c *console.Console) error {
			res := c.Service.Login(ctx, fs.Arg(0), pw)
			if !res.Success {
				return res.Err()
			}
			fmt.Fprintf(env.Out, "Signed in as %s (%s) until %s\n",
				res.Payload.User.Email, res.Payload.User.Role, res.Payload.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		})
	}
	return cmd
}

func logoutCmd() *Command {
	cmd := &Command{
		Name:        "logout",
		Description: "Sign out and forget the saved session",
		Usage:       "clubctl logout",
	}
	cmd.Run = func(env *Env, args []string) error {
		fs, config := cmd.NewFlagSet(env)
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withConsole(*config, func(ctx context.Context, c *console.Console) error {
			return report(env, c.Service.Logout(ctx), "Signed out.")
		})
	}
	return cmd
}

func whoamiCmd() *Command {
	cmd := &Command{
		Name:        "whoami",
		Description: "Validate the saved session and show the signed-in member",
		Usage:       "clubctl whoami",
	}
	cmd.Run = func(env *Env, args []string) error {
		fs, config := cmd.NewFlagSet(env)
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withConsole(*config, func(ctx context.Context, c *console.Console) error {
			res := c.Service.Restore(ctx)
			if !res.Success {
				return res.Err()
			}
			printUser(env, res.Payload)
			return nil
		})
	}
	return cmd
}

func profileCmd() *Command {
	cmd := &Command{
		Name:        "profile",
		Description: "Update the signed-in member's email, name or phone",
		Usage:       "clubctl profile [-email EMAIL] [-name NAME] [-phone PHONE]",
		Examples:    []string{"clubctl profile -phone '0400 000 000'"},
	}
	cmd.Run = func(env *Env, args []string) error {
		fs, config := cmd.NewFlagSet(env)
		email := fs.String("email", "", "New email address")
		name := fs.String("name", "", "New full name")
		phone := fs.String("phone", "", "New phone number")
		if err := fs.Parse(args); err != nil {
			return err
		}

		var upd authsdk.ProfileUpdate
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "email":
				upd.Email = email
			case "name":
				upd.FullName = name
			case "phone":
				upd.Phone = phone
			}
		})
		if upd.Empty() {
			return errors.New("profile: nothing to update")
		}

		return withConsole(*config, func(ctx context.Context, c *console.Console) error {
			res := c.Service.UpdateProfile(ctx, upd)
			if !res.Success {
				return res.Err()
			}
			fmt.Fprintln(env.Out, "Profile updated.")
			printUser(env, res.Payload)
			return nil
		})
	}
	return cmd
}

func changePasswordCmd() *Command {
	cmd := &Command{
		Name:        "change-password",
		Description: "Change the signed-in member's password",
		Usage:       "clubctl change-password -current PW -new PW",
	}
	cmd.Run = func(env *Env, args []string) error {
		fs, config := cmd.NewFlagSet(env)
		current := fs.String("current", "", "Current password")
		next := fs.String("new", "", "New password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withConsole(*config, func(ctx context.Context, c *console.Console) error {
			return report(env, c.Service.ChangePassword(ctx, *current, *next), "Password changed.")
		})
	}
	return cmd
}

func forgotPasswordCmd() *Command {
	cmd := &Command{
		Name:        "forgot-password",
		Description: "Request a password reset token",
		Usage:       "clubctl forgot-password <email>",
	}
	cmd.Run = func(env *Env, args []string) error {
		fs, config := cmd.NewFlagSet(env)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := requireArgs(cmd, fs.Args(), 1); err != nil {
			return err
		}
		return withConsole(*config, func(ctx context.Context, c *console.Console) error {
			res := c.Service.RequestPasswordReset(ctx, fs.Arg(0))
			if !res.Success {
				return res.Err()
			}
			fmt.Fprintln(env.Out, "If that address belongs to a member, a reset link is on its way.")
			if res.Payload.ResetToken != "" {
				fmt.Fprintf(env.Out, "Reset token: %s\n", res.Payload.ResetToken)
			}
			return nil
		})
	}
	return cmd
}

func resetPasswordCmd() *Command {
	cmd := &Command{
		Name:        "reset-password",
		Description: "Set a new password with a reset token",
		Usage:       "clubctl reset-password [-password PW] <token>",
	}
	cmd.Run = func(env *Env, args []string) error {
		fs, config := cmd.NewFlagSet(env)
		password := fs.String("password", "", "New password (read from stdin when omitted)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := requireArgs(cmd, fs.Args(), 1); err != nil {
			return err
		}
		pw, err := readSecret(env, *password, "New password")
		if err != nil {
			return err
		}
		return withConsole(*config, func(ctx context.Context, c *console.Console) error {
			return report(env, c.Service.ResetPassword(ctx, fs.Arg(0), pw), "Password reset. Sign in with the new password.")
		})
	}
	return cmd
}

func usersCmd() *Command {
	cmd := &Command{
		Name:        "users",
		Description: "List every member (admin only)",
		Usage:       "clubctl users",
	}
	cmd.Run = func(env *Env, args []string) error {
		fs, config := cmd.NewFlagSet(env)
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withConsole(*config, func(ctx context.Context, c *console.Console) error {
			res := c.Service.GetAllUsers(ctx)
			if !res.Success {
				return res.Err()
			}
			table := NewTableWriter([]string{"ID", "EMAIL", "NAME", "ROLE", "STATUS"})
			for _, u := range res.Payload {
				table.AddRow([]string{u.ID, u.Email, u.FullName, string(u.Role), string(u.Status)})
			}
			table.Print(env.Out)
			return nil
		})
	}
	return cmd
}

func setRoleCmd() *Command {
	cmd := &Command{
		Name:        "set-role",
		Description: "Change a member's role (admin only)",
		Usage:       "clubctl set-role <user-id> <member|admin|super_admin>",
	}
	cmd.Run = func(env *Env, args []string) error {
		fs, config := cmd.NewFlagSet(env)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := requireArgs(cmd, fs.Args(), 2); err != nil {
			return err
		}
		role, err := authsdk.ParseRole(fs.Arg(1))
		if err != nil {
			return err
		}
		return withConsole(*config, func(ctx context.Context, c *console.Console) error {
			return report(env, c.Service.SetUserRole(ctx, fs.Arg(0), role), fmt.Sprintf("Role set to %s.", role))
		})
	}
	return cmd
}

func setStatusCmd() *Command {
	cmd := &Command{
		Name:        "set-status",
		Description: "Change a member's account status (admin only)",
		Usage:       "clubctl set-status <user-id> <pending|active|inactive>",
	}
	cmd.Run = func(env *Env, args []string) error {
		fs, config := cmd.NewFlagSet(env)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := requireArgs(cmd, fs.Args(), 2); err != nil {
			return err
		}
		status, err := authsdk.ParseStatus(fs.Arg(1))
		if err != nil {
			return err
		}
		return withConsole(*config, func(ctx context.Context, c *console.Console) error {
			return report(env, c.Service.SetUserStatus(ctx, fs.Arg(0), status), fmt.Sprintf("Status set to %s.", status))
		})
	}
	return cmd
}

func versionCmd() *Command {
	cmd := &Command{
		Name:        "version",
		Description: "Show version information",
		Usage:       "clubctl version",
	}
	cmd.Run = func(env *Env, args []string) error {
		fmt.Fprintf(env.Out, "clubctl %s\n", env.Version.Version)
		fmt.Fprintf(env.Out, "  commit: %s\n", env.Version.Commit)
		fmt.Fprintf(env.Out, "  built:  %s\n", env.Version.Date)
		return nil
	}
	return cmd
}
