package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/internal/export"
	"github.com/spf13/cobra"
)

func newBoardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show or export the operating-room board",
	}
	cmd.AddCommand(newBoardShowCmd())
	cmd.AddCommand(newBoardExportCmd())
	return cmd
}

func newBoardShowCmd() *cobra.Command {
	var (
		fecha  string
		asJSON bool
		recalc bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Fetch the board once and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			lb := newLocalBoard(cmd.Context(), fecha)
			if recalc {
				if err := lb.client.ActualizarEstados(cmd.Context()); err != nil {
					return loginHint(err)
				}
			}
			if err := lb.load(cmd.Context()); err != nil {
				return err
			}
			v := lb.view()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}
			printBoard(cmd, v)
			return nil
		},
	}
	cmd.Flags().StringVar(&fecha, "fecha", "", "Only this day (YYYY-MM-DD); default poll.fecha from config")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the board as JSON")
	cmd.Flags().BoolVar(&recalc, "recompute", false, "Ask the backend to recompute statuses first")
	return cmd
}

func printBoard(cmd *cobra.Command, v board.View) {
	out := cmd.OutOrStdout()
	if len(v.Rooms) == 0 {
		_, _ = fmt.Fprintln(out, "No pabellones.")
		return
	}
	for _, r := range v.Rooms {
		kind := ""
		if r.EsCompleja {
			kind = ", compleja"
		}
		_, _ = fmt.Fprintf(out, "%s (#%d%s) · %d min\n", r.Nombre, r.ID, kind, r.TotalMinutes)
		if len(r.Cards) == 0 {
			_, _ = fmt.Fprintln(out, "  (libre)")
			continue
		}
		for _, c := range r.Cards {
			name := c.Paciente
			if c.Tipo != "" && !c.EsAseo {
				name = c.Tipo + " · " + c.Paciente
			}
			_, _ = fmt.Fprintf(out, "  - #%d %s %s (%d min) [%s]", c.ID, clock(c.HoraInicio), name, c.TotalMinutes, c.Estado)
			if c.Doctor != "" {
				_, _ = fmt.Fprintf(out, " %s", c.Doctor)
			}
			_, _ = fmt.Fprintln(out)
		}
	}
}

// clock trims seconds from HH:MM:SS.
func clock(hora string) string {
	if len(hora) >= 5 {
		return hora[:5]
	}
	return hora
}

func newBoardExportCmd() *cobra.Command {
	var (
		fecha  string
		format string
		out    string
		tz     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the board as a spreadsheet (xlsx) or calendar (ics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = "xlsx"
				if out != "" {
					format = out
				}
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			day := fecha
			if day == "" {
				day = configFrom(cmd.Context()).Poll.Fecha
			}
			if out == "" {
				out = export.Filename(f, day)
			}
			loc := time.Local
			if tz != "" {
				if loc, err = time.LoadLocation(tz); err != nil {
					return fmt.Errorf("--tz: %w", err)
				}
			}

			lb := newLocalBoard(cmd.Context(), fecha)
			if err := lb.load(cmd.Context()); err != nil {
				return err
			}
			v := lb.view()

			var data []byte
			switch f {
			case export.FormatXLSX:
				buf, err := export.XLSX(v, day)
				if err != nil {
					return err
				}
				data = buf.Bytes()
			case export.FormatICS:
				cal, skipped, err := export.ICS(v, loc, time.Now())
				if err != nil {
					return err
				}
				if skipped > 0 {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: skipped %d cirugias without a usable start time\n", skipped)
				}
				data = []byte(cal)
			default:
				return errors.New("unsupported format")
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d pabellones)\n", out, len(v.Rooms))
			return nil
		},
	}
	cmd.Flags().StringVar(&fecha, "fecha", "", "Only this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&format, "format", "", "xlsx or ics (default: from --out, else xlsx)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default pabellones_<fecha>.<format>)")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA time zone for ics start times (default local)")
	return cmd
}
