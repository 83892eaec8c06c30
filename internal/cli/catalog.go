package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ankittk/pabellon/internal/validate"
	"github.com/ankittk/pabellon/pkg/client"
	"github.com/ankittk/pabellon/pkg/models"
	"github.com/spf13/cobra"
)

// catalog is the list/create/delete command set for one backend collection.
type catalog[T any] struct {
	noun     string // singular, used in messages
	resource func(*client.Client) client.Resource[T]
	line     func(T) string
	id       func(T) int64
}

func (k catalog[T]) command(use, short string, create *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}
	cmd.AddCommand(k.listCmd())
	cmd.AddCommand(k.deleteCmd())
	if create != nil {
		cmd.AddCommand(create)
	}
	return cmd
}

func (k catalog[T]) listCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every " + k.noun,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _ := backend(cmd.Context())
			items, err := k.resource(c).List(cmd.Context(), nil)
			if err != nil {
				return loginHint(err)
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(items)
			}
			if len(items) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No %s records.\n", k.noun)
				return nil
			}
			for _, it := range items {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- #%d %s\n", k.id(it), k.line(it))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func (k catalog[T]) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + k.noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, _ := backend(cmd.Context())
			if err := k.resource(c).Delete(cmd.Context(), id); err != nil {
				return loginHint(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %d\n", k.noun, id)
			return nil
		},
	}
}

// create validates payload and posts it.
func (k catalog[T]) create(cmd *cobra.Command, payload any) error {
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("invalid %s: %w", k.noun, err)
	}
	c, _ := backend(cmd.Context())
	out, err := k.resource(c).Create(cmd.Context(), payload)
	if err != nil {
		return loginHint(err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s #%d %s\n", k.noun, k.id(*out), k.line(*out))
	return nil
}

var pabellones = catalog[models.Pabellon]{
	noun:     "pabellon",
	resource: (*client.Client).Pabellones,
	id:       func(p models.Pabellon) int64 { return p.ID },
	line: func(p models.Pabellon) string {
		s := fmt.Sprintf("%s (capacidad %d)", p.Nombre, p.Capacidad)
		if p.EsCompleja {
			s += " compleja"
		}
		return s
	},
}

var pacientes = catalog[models.Paciente]{
	noun:     "paciente",
	resource: (*client.Client).Pacientes,
	id:       func(p models.Paciente) int64 { return p.ID },
	line: func(p models.Paciente) string {
		if p.Rut == "" {
			return p.Nombre
		}
		return fmt.Sprintf("%s (%s)", p.Nombre, p.Rut)
	},
}

var tipos = catalog[models.TipoCirugia]{
	noun:     "tipo de cirugia",
	resource: (*client.Client).TiposCirugia,
	id:       func(t models.TipoCirugia) int64 { return t.ID },
	line: func(t models.TipoCirugia) string {
		return fmt.Sprintf("%s (%d min)", t.Nombre, t.DuracionEstimada)
	},
}

var usuarios = catalog[models.Usuario]{
	noun:     "usuario",
	resource: (*client.Client).Usuarios,
	id:       func(u models.Usuario) int64 { return u.ID },
	line: func(u models.Usuario) string {
		s := fmt.Sprintf("%s %q [%s]", u.Username, u.NombreCompleto, u.Rol)
		if !u.EsActivo {
			s += " inactivo"
		}
		return s
	},
}

func newPabellonCmd() *cobra.Command {
	var in models.PabellonInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an operating room",
		RunE: func(cmd *cobra.Command, args []string) error {
			return pabellones.create(cmd, in)
		},
	}
	create.Flags().StringVar(&in.Nombre, "nombre", "", "Room name")
	create.Flags().IntVar(&in.Capacidad, "capacidad", 1, "Capacity")
	create.Flags().BoolVar(&in.EsCompleja, "compleja", false, "Room supports complex surgeries")
	return pabellones.command("pabellon", "Manage operating rooms", create)
}

func newPacienteCmd() *cobra.Command {
	var in models.PacienteInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a patient (RUT is checked before sending)",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := in
			if strings.TrimSpace(p.Rut) != "" {
				if err := validate.RUT(p.Rut); err != nil {
					return fmt.Errorf("rut %q: %w", p.Rut, err)
				}
				p.Rut = validate.FormatRUT(p.Rut)
			}
			return pacientes.create(cmd, p)
		},
	}
	create.Flags().StringVar(&in.Nombre, "nombre", "", "Full name")
	create.Flags().StringVar(&in.Rut, "rut", "", "RUT (e.g. 12.345.678-5)")
	create.Flags().StringVar(&in.Telefono, "telefono", "", "Phone")
	create.Flags().StringVar(&in.Email, "email", "", "Email")
	create.Flags().StringVar(&in.FechaNacimiento, "nacimiento", "", "Birth date (YYYY-MM-DD)")
	create.Flags().StringVar(&in.Direccion, "direccion", "", "Address")
	return pacientes.command("paciente", "Manage patients", create)
}

func newTipoCmd() *cobra.Command {
	var in models.TipoCirugiaInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Add a surgery type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tipos.create(cmd, in)
		},
	}
	create.Flags().StringVar(&in.Nombre, "nombre", "", "Type name")
	create.Flags().IntVar(&in.DuracionEstimada, "duracion", 60, "Estimated duration in minutes")
	create.Flags().StringVar(&in.Descripcion, "descripcion", "", "Description")
	return tipos.command("tipo", "Manage the surgery-type catalog", create)
}

func newUsuarioCmd() *cobra.Command {
	var in models.UsuarioInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a platform user (doctors use --rol Doctor)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return usuarios.create(cmd, in)
		},
	}
	create.Flags().StringVar(&in.Username, "username", "", "Login name")
	create.Flags().StringVar(&in.NombreCompleto, "nombre", "", "Full name")
	create.Flags().StringVar(&in.Rol, "rol", models.RolDoctor, "Role")
	create.Flags().StringVar(&in.Password, "password", "", "Initial password")
	create.Flags().BoolVar(&in.EsActivo, "activo", true, "Account active")
	return usuarios.command("usuario", "Manage platform users and doctors", create)
}
