package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ankittk/pabellon/internal/config"
	"github.com/ankittk/pabellon/internal/daemon"
	"github.com/spf13/cobra"
)

func newNukeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "nuke",
		Short: "Destroy all local pabellon state (session, journal, config) under PABELLON_HOME",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())

			if st, _ := daemon.Status(cmd.Context(), home); st.Running {
				return fmt.Errorf("daemon is running (pid %d); run `pabellon stop` first", st.PID)
			}

			if !yes {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "WARNING: this will permanently delete the session, journal and config.")
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Directory: %s\n", home)
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), `Type "delete everything" to confirm:`)

				in := bufio.NewReader(cmd.InOrStdin())
				line, err := in.ReadString('\n')
				if err != nil && !strings.Contains(err.Error(), "EOF") {
					return err
				}
				if strings.TrimSpace(line) != "delete everything" {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := os.RemoveAll(home); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	return cmd
}
