package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nhle/task-suite/internal/model"
	"github.com/nhle/task-suite/internal/profile"
)

func newLoginCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with your organization account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupCLILogging(opts)
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			svc, err := openServices(cfg, false)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			acct, err := svc.identity.Login(cmd.Context(), func(authURL string) {
				fmt.Fprintln(out, "Open this URL in your browser to sign in:")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "  "+authURL)
				fmt.Fprintln(out)
			})
			if err != nil {
				return fmt.Errorf("signing in: %w", err)
			}
			fmt.Fprintf(out, "Signed in as %s\n", accountLabel(acct))
			return nil
		},
	}
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the cached token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupCLILogging(opts)
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			svc, err := openServices(cfg, false)
			if err != nil {
				return err
			}
			if err := svc.identity.Logout(); err != nil {
				return fmt.Errorf("signing out: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account and profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupCLILogging(opts)
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			svc, err := openServices(cfg, false)
			if err != nil {
				return err
			}

			acct, ok := svc.identity.CurrentAccount()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in. Run `tasksuite login`.")
				return nil
			}
			ps := profile.NewStore()
			res := profile.Populate(cmd.Context(), svc.identity, svc.graph, ps)
			writeWhoami(cmd.OutOrStdout(), acct, ps.Snapshot(), res)
			return nil
		},
	}
}

// writeWhoami prints the account and whatever profile fields were filled.
func writeWhoami(w io.Writer, acct model.Account, p model.Profile, res profile.Result) {
	fmt.Fprintf(w, "Account:  %s\n", accountLabel(acct))
	name := p.Name
	if name == "" {
		name = "(unavailable)"
	}
	fmt.Fprintf(w, "Profile:  %s\n", name)
	switch {
	case res.Err != nil:
		fmt.Fprintf(w, "Warning:  stopped at %s: %v\n", res.Stopped, res.Err)
	case res.PhotoFallback:
		fmt.Fprintln(w, "Photo:    default")
	case p.Image != "":
		fmt.Fprintln(w, "Photo:    available")
	}
}

func accountLabel(acct model.Account) string {
	switch {
	case acct.Username != "" && acct.Name != "":
		return fmt.Sprintf("%s (%s)", acct.Username, acct.Name)
	case acct.Username != "":
		return acct.Username
	default:
		return acct.Name
	}
}
