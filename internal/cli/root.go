package cli

import (
	"context"
	"os"

	"github.com/ankittk/pabellon/internal/config"
	"github.com/ankittk/pabellon/internal/logger"
	"github.com/spf13/cobra"
)

type configKey struct{}

// configFrom returns the configuration loaded by the root command.
func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok && cfg != nil {
		return cfg
	}
	return config.Default()
}

func NewRootCmd(version string) *cobra.Command {
	var (
		homeOverride string
		envFile      string
		logLevel     string
		flushLog     func()
	)

	cmd := &cobra.Command{
		Use:          "pabellon",
		Short:        "Pabellón board client: live operating-room board, poller and backend tools",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.ResolveHome(homeOverride)
			if err != nil {
				return err
			}
			cfg, err := config.Load(home, envFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			flush, err := logger.Install(cfg.Log)
			if err != nil {
				return err
			}
			flushLog = flush

			ctx := config.WithHome(cmd.Context(), home)
			cmd.SetContext(context.WithValue(ctx, configKey{}, cfg))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if flushLog != nil {
				flushLog()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&homeOverride, "home", "", "Override pabellon home directory (default: ~/.pabellon, env: PABELLON_HOME)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load env vars from a .env file before reading PABELLON_* overrides")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())

	cmd.AddCommand(newBoardCmd())
	cmd.AddCommand(newCirugiaCmd())
	cmd.AddCommand(newPabellonCmd())
	cmd.AddCommand(newPacienteCmd())
	cmd.AddCommand(newTipoCmd())
	cmd.AddCommand(newUsuarioCmd())
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newEventsCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newApikeyCmd())
	cmd.AddCommand(newNukeCmd())

	// Hidden internal subcommand used by `pabellon start` for background mode.
	cmd.AddCommand(newDaemonCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}
