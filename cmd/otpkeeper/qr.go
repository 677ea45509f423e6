package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQRCmd(c *cli) *cobra.Command {
	var (
		output string
		size   int
	)
	cmd := &cobra.Command{
		Use:   "qr <account>",
		Short: "Render an account as a QR code PNG for another authenticator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.resolve(ctx, args[0])
			if err != nil {
				return err
			}
			png, err := c.keeper.AccountQR(ctx, a.ID, size)
			if err != nil {
				return err
			}
			if output == "" {
				output = a.ID.String()[:8] + ".png"
			}
			if err := writeFile(output, png, cmd.OutOrStdout()); err != nil {
				return err
			}
			if output != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "QR code written to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file, - for stdout")
	cmd.Flags().IntVar(&size, "size", 256, "image size in pixels")
	return cmd
}
