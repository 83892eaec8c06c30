package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ankittk/pabellon/internal/config"
	"github.com/ankittk/pabellon/internal/daemon"
	"github.com/ankittk/pabellon/internal/session"
	"github.com/ankittk/pabellon/pkg/client"
	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var (
		username string
		password string
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the backend and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if password == "" {
				password = os.Getenv("PABELLON_PASSWORD")
			}
			if password == "" {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !strings.Contains(err.Error(), "EOF") {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password is required")
			}

			cfg := configFrom(cmd.Context())
			c := daemon.NewClient(cfg, nil)
			tok, err := c.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			st := session.NewStore(config.MustHomeFrom(cmd.Context()))
			s := session.Session{Token: tok.AccessToken, Username: username, APIURL: cfg.API.URL}
			if err := st.Save(s); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %q at %s\n", username, cfg.API.URL)
			if exp, ok := s.ExpiresAt(); ok {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Session expires %s\n", exp.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Backend username")
	cmd.Flags().StringVar(&password, "password", "", "Password (or PABELLON_PASSWORD; prompted when empty)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := session.NewStore(config.MustHomeFrom(cmd.Context()))
			if err := st.Clear(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := session.NewStore(config.MustHomeFrom(cmd.Context()))
			s, err := st.Load()
			if errors.Is(err, client.ErrUnauthenticated) || errors.Is(err, client.ErrSessionExpired) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if err != nil {
				return err
			}
			user := s.Subject()
			if user == "" {
				user = s.Username
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "User: %s\n", user)
			if s.APIURL != "" {
				_, _ = fmt.Fprintf(out, "API: %s\n", s.APIURL)
			}
			if exp, ok := s.ExpiresAt(); ok {
				_, _ = fmt.Fprintf(out, "Expires: %s\n", exp.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}
