package cli

import (
	"fmt"
	"time"

	"github.com/ankittk/pabellon/internal/validate"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the offline RUT and card checks",
	}
	cmd.AddCommand(newValidateRUTCmd())
	cmd.AddCommand(newValidateCardCmd())
	return cmd
}

func newValidateRUTCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rut <rut>",
		Short: "Check a Chilean RUT (mod-11 check digit)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate.RUT(args[0]); err != nil {
				return fmt.Errorf("%q: %w", args[0], err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "valid: %s\n", validate.FormatRUT(args[0]))
			return nil
		},
	}
}

func newValidateCardCmd() *cobra.Command {
	var cvv, expiry string
	cmd := &cobra.Command{
		Use:   "card <number>",
		Short: "Check a card number (Luhn), and optionally CVV and expiry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate.CardNumber(args[0]); err != nil {
				return err
			}
			if cvv != "" {
				if err := validate.CVV(cvv); err != nil {
					return err
				}
			}
			if expiry != "" {
				if err := validate.Expiry(expiry, time.Now()); err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "valid: %s (%s)\n", validate.FormatCardNumber(args[0]), validate.CardBrand(args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&cvv, "cvv", "", "CVV to check")
	cmd.Flags().StringVar(&expiry, "expiry", "", "Expiry to check (MM/YY)")
	return cmd
}
