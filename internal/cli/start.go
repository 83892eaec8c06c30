package cli

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/ankittk/pabellon/internal/config"
	"github.com/ankittk/pabellon/internal/daemon"
	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	var (
		port       int
		foreground bool
		dev        bool
		pprofAddr  string
		apiKey     string
		open       bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the board daemon (poller + local view server)",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg := configFrom(cmd.Context())
			envFile, _ := cmd.Flags().GetString("env-file")

			opts := daemon.StartOptions{
				Home:      home,
				EnvFile:   envFile,
				Port:      port,
				Dev:       dev,
				PprofAddr: pprofAddr,
				APIKey:    apiKey,
			}
			if port <= 0 {
				port = cfg.Server.Port
			}
			board := (&url.URL{Scheme: "http", Host: fmt.Sprintf("localhost:%d", port), Path: "/board"}).String()

			if foreground {
				opts.Config = cfg
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting pabellon in foreground on %s\n", board)
				return daemon.StartForeground(cmd.Context(), opts)
			}

			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pabellon started (pid %d)\n", pid)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Board: %s\n", board)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logs: %s\n", daemon.LogPath(home))

			if open {
				_ = openBrowser(board)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port for the local view server (default: server.port from config)")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in foreground (do not daemonize)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode (CORS for a front-end on another origin)")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Require this X-API-Key on the view server (or set PABELLON_API_KEY)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the board in a browser after starting")

	return cmd
}

func openBrowser(u string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", u).Start()
	case "windows":
		return exec.Command("cmd", "/c", "start", u).Start()
	default:
		// Linux and others
		if _, err := exec.LookPath("xdg-open"); err != nil {
			return err
		}
		return exec.Command("xdg-open", u).Start()
	}
}
