package cli

import (
	"github.com/ankittk/pabellon/internal/config"
	"github.com/ankittk/pabellon/internal/daemon"
	"github.com/spf13/cobra"
)

func newDaemonCmd() *cobra.Command {
	var (
		port      int
		dev       bool
		pprofAddr string
	)

	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run daemon process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return daemon.StartForeground(cmd.Context(), daemon.StartOptions{
				Home:      config.MustHomeFrom(cmd.Context()),
				EnvFile:   envFile,
				Config:    configFrom(cmd.Context()),
				Port:      port,
				Dev:       dev,
				PprofAddr: pprofAddr,
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port for the local view server")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")

	return cmd
}
