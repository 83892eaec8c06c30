package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/pkg/models"
	"github.com/spf13/cobra"
)

func newCirugiaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cirugia",
		Aliases: []string{"cirugias"},
		Short:   "Manage surgeries on the board",
	}
	cmd.AddCommand(newCirugiaListCmd())
	cmd.AddCommand(newCirugiaGetCmd())
	cmd.AddCommand(newCirugiaCreateCmd())
	cmd.AddCommand(newCirugiaUpdateCmd())
	cmd.AddCommand(newCirugiaDeleteCmd())
	cmd.AddCommand(newCirugiaMoveCmd())
	cmd.AddCommand(newCirugiaExtraTimeCmd())
	cmd.AddCommand(newCirugiaEstadoCmd())
	cmd.AddCommand(newCirugiaRecomputeCmd())
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// bindCirugiaForm registers the create/update form flags. Values stay text;
// the controller coerces and validates them.
func bindCirugiaForm(cmd *cobra.Command, f *board.CirugiaForm) {
	cmd.Flags().StringVar(&f.PacienteID, "paciente", "", "Patient id")
	cmd.Flags().StringVar(&f.DoctorID, "doctor", "", "Doctor (user) id")
	cmd.Flags().StringVar(&f.TipoCirugiaID, "tipo", "", "Surgery type id")
	cmd.Flags().StringVar(&f.PabellonID, "pabellon", "", "Room id")
	cmd.Flags().StringVar(&f.Fecha, "fecha", "", "Date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.HoraInicio, "hora", "", "Start time (HH:MM)")
	cmd.Flags().StringVar(&f.DuracionProgramada, "duracion", "", "Planned duration in minutes")
	cmd.Flags().StringVar(&f.ExtraTime, "extra", "", "Extra time in minutes")
}

func printCirugia(cmd *cobra.Command, verb string, c *models.Cirugia) {
	if c == nil {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), verb)
		return
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s cirugia %d (pabellon %d, %s %s, %s)\n",
		verb, c.ID, c.PabellonID, c.Fecha, clock(c.HoraInicio), c.Estado)
}

func newCirugiaListCmd() *cobra.Command {
	var (
		filter models.CirugiaFilter
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List surgeries (optionally by room and day)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _ := backend(cmd.Context())
			list, err := c.ListCirugias(cmd.Context(), filter)
			if err != nil {
				return loginHint(err)
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(list)
			}
			if len(list) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No cirugias.")
				return nil
			}
			for _, ci := range list {
				kind := ""
				if ci.EsAseo {
					kind = " aseo"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- #%d pabellon=%d %s %s%s (%d min) [%s]\n",
					ci.ID, ci.PabellonID, ci.Fecha, clock(ci.HoraInicio), kind, ci.TotalMinutes(), ci.Estado)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&filter.PabellonID, "pabellon", 0, "Only this room")
	cmd.Flags().StringVar(&filter.Fecha, "fecha", "", "Only this day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newCirugiaGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one surgery as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, _ := backend(cmd.Context())
			ci, err := c.Cirugias().Get(cmd.Context(), id)
			if err != nil {
				return loginHint(err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ci)
		},
	}
}

func newCirugiaCreateCmd() *cobra.Command {
	var form board.CirugiaForm
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a surgery (the backend adds its cleaning task)",
		RunE: func(cmd *cobra.Command, args []string) error {
			lb := newLocalBoard(cmd.Context(), "")
			ci, err := lb.ctl.Create(cmd.Context(), form)
			if err != nil {
				return loginHint(err)
			}
			printCirugia(cmd, "Created", ci)
			return nil
		},
	}
	bindCirugiaForm(cmd, &form)
	return cmd
}

func newCirugiaUpdateCmd() *cobra.Command {
	var form board.CirugiaForm
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a surgery's fields (all required fields must be given)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			lb := newLocalBoard(cmd.Context(), "")
			ci, err := lb.ctl.Update(cmd.Context(), id, form)
			if err != nil {
				return loginHint(err)
			}
			printCirugia(cmd, "Updated", ci)
			return nil
		},
	}
	bindCirugiaForm(cmd, &form)
	return cmd
}

func newCirugiaDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"suspend"},
		Short:   "Suspend a surgery (status CANCELADA)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			lb := newLocalBoard(cmd.Context(), "")
			if err := lb.ctl.Delete(cmd.Context(), id); err != nil {
				return loginHint(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Suspended cirugia %d\n", id)
			return nil
		},
	}
}

func newCirugiaMoveCmd() *cobra.Command {
	var from, to int64
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a surgery to another room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			lb := newLocalBoard(cmd.Context(), "")
			if from == 0 {
				if err := lb.load(cmd.Context()); err != nil {
					return err
				}
				cur, ok := lb.board.Lookup(id)
				if !ok {
					return fmt.Errorf("cirugia %d: %w", id, board.ErrNotOnBoard)
				}
				from = cur.PabellonID
			}
			if from == to {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cirugia %d already in pabellon %d\n", id, to)
				return nil
			}
			if err := lb.ctl.Move(cmd.Context(), id, from, to); err != nil {
				return loginHint(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Moved cirugia %d from pabellon %d to %d\n", id, from, to)
			return nil
		},
	}
	cmd.Flags().Int64Var(&to, "to", 0, "Destination room id")
	cmd.Flags().Int64Var(&from, "from", 0, "Current room id (default: looked up on the board)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newCirugiaExtraTimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extra-time <id> <minutes>",
		Short: "Add minutes to a surgery's extra time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			delta, err := board.ParseMinutes(args[1])
			if err != nil {
				return err
			}
			lb := newLocalBoard(cmd.Context(), "")
			if err := lb.load(cmd.Context()); err != nil {
				return err
			}
			if err := lb.ctl.AddExtraTime(cmd.Context(), id, delta); err != nil {
				return loginHint(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %d min to cirugia %d\n", delta, id)
			return nil
		},
	}
}

func newCirugiaEstadoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estado <id> <ESTADO>",
		Short: "Request a status transition (PROGRAMADA, EN_CURSO, EN_ASEO, COMPLICADA, FINALIZADA, CANCELADA)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			estado := models.Estado(strings.ToUpper(strings.TrimSpace(args[1])))
			lb := newLocalBoard(cmd.Context(), "")
			if err := lb.ctl.Transition(cmd.Context(), id, estado); err != nil {
				return loginHint(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cirugia %d set to %s\n", id, estado)
			return nil
		},
	}
}

func newCirugiaRecomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Ask the backend to recompute surgery statuses now",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _ := backend(cmd.Context())
			if err := c.ActualizarEstados(cmd.Context()); err != nil {
				return loginHint(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Statuses recomputed")
			return nil
		},
	}
}
