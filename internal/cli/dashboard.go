package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newDashboardCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show today's KPIs and upcoming surgeries",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _ := backend(cmd.Context())
			d, err := c.Dashboard(cmd.Context())
			if err != nil {
				return loginHint(err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(d)
			}
			_, _ = fmt.Fprintf(out, "Cirugias hoy: %d\n", d.KPIs.TotalHoy)
			_, _ = fmt.Fprintf(out, "En ejecucion: %d\n", d.KPIs.EnEjecucion)
			_, _ = fmt.Fprintf(out, "Retrasos:     %d\n", d.KPIs.Retrasos)
			_, _ = fmt.Fprintf(out, "Aseo activo:  %d\n", d.KPIs.AseoActivo)
			if len(d.Proximas) == 0 {
				return nil
			}
			_, _ = fmt.Fprintln(out, "Proximas:")
			for _, p := range d.Proximas {
				_, _ = fmt.Fprintf(out, "- %s %s · %s (%s)\n", clock(p.Hora), p.Tipo, p.Paciente, p.Pabellon)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
