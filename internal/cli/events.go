package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/internal/config"
	"github.com/ankittk/pabellon/internal/daemon"
	"github.com/ankittk/pabellon/internal/notify"
	"github.com/ankittk/pabellon/internal/store"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var (
		cirugiaID int64
		since     string
		limit     int
		follow    bool
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show journaled status changes (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd.Context())
			if follow {
				return followEvents(cmd, cfg, asJSON)
			}

			opts := store.ListOptions{CirugiaID: cirugiaID, Limit: limit}
			if since != "" {
				t, err := parseSince(since, time.Now())
				if err != nil {
					return err
				}
				opts.Since = t
			}
			j, err := daemon.OpenJournal(cfg, config.MustHomeFrom(cmd.Context()))
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer func() { _ = j.Close() }()

			recs, err := j.ListStatusChanges(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(recs)
			}
			if len(recs) == 0 {
				_, _ = fmt.Fprintln(out, "No status changes recorded.")
				return nil
			}
			for _, r := range recs {
				_, _ = fmt.Fprintf(out, "%s  %s\n", r.At.Local().Format("2006-01-02 15:04:05"), notify.Message(board.StatusChange{
					CirugiaID:  r.CirugiaID,
					PabellonID: r.PabellonID,
					Pabellon:   r.Pabellon,
					Old:        r.Old,
					New:        r.New,
				}))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&cirugiaID, "cirugia", 0, "Only this surgery")
	cmd.Flags().StringVar(&since, "since", "", "Only changes after this time (RFC3339) or age (e.g. 2h)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max rows (default 200)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream live changes from the Redis channel (notify.redis_addr)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

// parseSince accepts an RFC3339 timestamp or a duration before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("--since: %q is neither RFC3339 nor a duration", s)
	}
	return now.Add(-d), nil
}

func followEvents(cmd *cobra.Command, cfg *config.Config, asJSON bool) error {
	if cfg.Notify.RedisAddr == "" {
		return errors.New("--follow needs notify.redis_addr (or PABELLON_REDIS_ADDR)")
	}
	r, err := notify.NewRedis(cfg.Notify.RedisAddr, cfg.Notify.RedisPassword, cfg.Notify.RedisChannel, zap.L())
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s (Ctrl-C to stop)\n", cfg.Notify.RedisChannel)
	return r.Listen(cmd.Context(), func(c board.StatusChange) {
		if asJSON {
			_ = enc.Encode(c)
			return
		}
		_, _ = fmt.Fprintf(out, "%s  %s\n", c.At.Local().Format("2006-01-02 15:04:05"), notify.Message(c))
	})
}
