package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ankittk/pabellon/internal/config"
	"github.com/ankittk/pabellon/internal/daemon"
	"github.com/ankittk/pabellon/internal/session"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify configuration, session, backend and journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg := configFrom(cmd.Context())
			out := cmd.OutOrStdout()

			var problems []string

			_, _ = fmt.Fprintf(out, "home: %s\n", home)
			_, _ = fmt.Fprintf(out, "api: %s\n", cfg.API.URL)

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			c := daemon.NewClient(cfg, session.NewStore(home))
			if err := c.Health(ctx); err != nil {
				problems = append(problems, fmt.Sprintf("backend unreachable at %s: %v", cfg.API.URL, err))
			}

			if s, err := session.NewStore(home).Load(); err != nil {
				problems = append(problems, fmt.Sprintf("no usable session: %v (run `pabellon login`)", err))
			} else {
				line := "session: " + s.Username
				if exp, ok := s.ExpiresAt(); ok {
					line += ", expires " + exp.Local().Format(time.RFC1123)
				}
				_, _ = fmt.Fprintln(out, line)
			}

			j, err := daemon.OpenJournal(cfg, home)
			if err != nil {
				problems = append(problems, fmt.Sprintf("journal (%s): %v", cfg.Journal.Driver, err))
			} else {
				_ = j.Close()
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "ok")
			return nil
		},
	}
	return cmd
}
