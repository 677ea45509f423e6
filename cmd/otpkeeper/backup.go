package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(c *cli) *cobra.Command {
	var (
		output          string
		includeSettings bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an encrypted backup of every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := c.password(cmd, true)
			if err != nil {
				return err
			}
			data, err := c.keeper.Export(cmd.Context(), pw, includeSettings)
			if err != nil {
				return err
			}
			if err := writeFile(output, data, cmd.OutOrStdout()); err != nil {
				return err
			}
			if output != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "otpkeeper-backup.otp", "destination file, - for stdout")
	cmd.Flags().BoolVar(&includeSettings, "settings", false, "include preferences")
	return cmd
}

func newImportCmd(c *cli) *cobra.Command {
	var restoreSettings bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge accounts from an encrypted backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readFile(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			pw, err := c.password(cmd, false)
			if err != nil {
				return err
			}
			n, err := c.keeper.Import(cmd.Context(), data, pw, restoreSettings)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new account(s)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&restoreSettings, "settings", false, "also restore preferences stored in the backup")
	return cmd
}
