package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrEthical07/shopauth/client"
)

// cliSession is a SessionManager backed by the profile's cookie and cache
// files.
type cliSession struct {
	*client.SessionManager
	creds *client.FileCredentials
}

func openSession(v *viper.Viper) (*cliSession, error) {
	p, err := loadProfile(v)
	if err != nil {
		return nil, err
	}
	creds, err := client.NewFileCredentials(p.CookieFile)
	if err != nil {
		return nil, err
	}
	m := client.New(p.Server,
		client.WithTimeout(p.Timeout),
		client.WithCredentialStore(creds),
		client.WithSnapshotCache(client.NewFileSnapshotCache(p.CacheFile)),
	)
	return &cliSession{SessionManager: m, creds: creds}, nil
}

// persistErr reports a cookie file write failure from the last request.
func (s *cliSession) persistErr() error {
	if err := s.creds.Err(); err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	return nil
}

func newLoginCommand(v *viper.Viper, admin bool) *cobra.Command {
	var username, password string

	use, short := "login", "Log in and keep the session cookies"
	if admin {
		use, short = "admin-login", "Log in as staff"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = prompt(cmd, bufio.NewReader(cmd.InOrStdin()), "Password: "); err != nil {
					return err
				}
			}
			s, err := openSession(v)
			if err != nil {
				return err
			}

			login := s.Login
			if admin {
				login = s.AdminLogin
			}
			res := login(cmd.Context(), username, password)
			if !res.Success {
				return errors.New(res.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			printIdentity(cmd.OutOrStdout(), s.User())
			return s.persistErr()
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username or phone number")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newSignupCommand(v *viper.Viper) *cobra.Command {
	var req client.SignupRequest

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				var err error
				in := bufio.NewReader(cmd.InOrStdin())
				if req.Password, err = prompt(cmd, in, "Password: "); err != nil {
					return err
				}
				if req.ConfirmPassword, err = prompt(cmd, in, "Confirm password: "); err != nil {
					return err
				}
			} else if req.ConfirmPassword == "" {
				req.ConfirmPassword = req.Password
			}

			s, err := openSession(v)
			if err != nil {
				return err
			}
			res := s.Signup(cmd.Context(), req)
			if !res.Success {
				return errors.New(res.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return s.persistErr()
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Name, "name", "", "full name")
	f.StringVar(&req.Email, "email", "", "email address")
	f.StringVar(&req.Phone, "phone", "", "phone number, used as the username")
	f.StringVar(&req.Password, "password", "", "password (prompted when empty)")
	f.StringVar(&req.ConfirmPassword, "confirm-password", "", "password confirmation (defaults to --password)")
	f.StringVar(&req.ReferralCode, "referral", "", "referral code from a friend")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func newWhoamiCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(v)
			if err != nil {
				return err
			}
			s.Bootstrap(cmd.Context())
			if !s.Session().IsAuthenticated() {
				return errors.New("not logged in")
			}
			printIdentity(cmd.OutOrStdout(), s.User())
			return s.persistErr()
		},
	}
}

func newLogoutCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget local credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(v)
			if err != nil {
				return err
			}
			s.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return s.persistErr()
		},
	}
}

func newWalletCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "wallet",
		Short: "Show the coin balance",
		RunE: withSession(v, func(ctx context.Context, s *cliSession, out io.Writer) error {
			w, err := s.Wallet(ctx)
			if err != nil {
				return apiErr(err)
			}
			fmt.Fprintf(out, "%d coins\n", w.Coins)
			return nil
		}),
	}
}

func newReferralCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "referral",
		Short: "Generate a referral code to share",
		RunE: withSession(v, func(ctx context.Context, s *cliSession, out io.Writer) error {
			r, err := s.GenerateReferral(ctx)
			if err != nil {
				return apiErr(err)
			}
			fmt.Fprintln(out, r.Code)
			if r.WhatsAppURL != "" {
				fmt.Fprintln(out, r.WhatsAppURL)
			}
			return nil
		}),
	}
}

func newUsersCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List accounts (staff only)",
		RunE: withSession(v, func(ctx context.Context, s *cliSession, out io.Writer) error {
			users, err := s.Users(ctx)
			if err != nil {
				return apiErr(err)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tADMIN")
			for _, u := range users {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", u.ID, u.Username, u.Email, u.IsAdmin)
			}
			return tw.Flush()
		}),
	}
}

func withSession(v *viper.Viper, fn func(context.Context, *cliSession, io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(v)
		if err != nil {
			return err
		}
		if err := fn(cmd.Context(), s, cmd.OutOrStdout()); err != nil {
			return err
		}
		return s.persistErr()
	}
}

func apiErr(err error) error {
	var ae *client.APIError
	if errors.As(err, &ae) && ae.IsUnauthorized() {
		return errors.New("not logged in")
	}
	return errors.New(client.UserMessage(err))
}

func printIdentity(out io.Writer, u *client.Identity) {
	if u == nil {
		return
	}
	role := "customer"
	if u.IsAdmin {
		role = "admin"
	}
	fmt.Fprintf(out, "%s <%s> (%s)\n", u.Username, u.Email, role)
	if u.ReferralCode != "" {
		fmt.Fprintf(out, "referral code: %s\n", u.ReferralCode)
	}
}

func prompt(cmd *cobra.Command, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}
