package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/display"
	"github.com/dmitrymomot/otpkeeper/pkg/otp"
)

func newAddCmd(c *cli) *cobra.Command {
	var (
		a        account.Account
		typ, alg string
		generate bool
		favorite bool
	)
	cmd := &cobra.Command{
		Use:   "add [otpauth-uri]",
		Short: "Add an account from an otpauth URI or flags",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var err error
			if len(args) == 1 {
				if a, err = c.keeper.ParseURI(args[0]); err != nil {
					return err
				}
			} else {
				if a.Type, err = otp.ParseType(typ); err != nil {
					return err
				}
				if a.Algorithm, err = otp.ParseAlgorithm(alg); err != nil {
					return err
				}
				if generate {
					if a.SecretKey, err = c.keeper.GenerateSecret(0); err != nil {
						return err
					}
				}
				if a.SecretKey == "" {
					return errors.New("secret is required: pass --secret or --generate")
				}
				a = a.WithDefaults()
			}
			a.Favorite = favorite

			added, err := c.keeper.Accounts().Add(ctx, a)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", added.DisplayName(), added.ID)
			if generate {
				fmt.Fprintln(cmd.OutOrStdout(), added.URI())
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&a.Issuer, "issuer", "", "service name")
	f.StringVar(&a.AccountName, "name", "", "account name")
	f.StringVar(&a.SecretKey, "secret", "", "Base32 secret")
	f.StringVar(&typ, "type", string(otp.TypeTOTP), "totp or hotp")
	f.StringVar(&alg, "algorithm", string(otp.DefaultAlgorithm), "SHA1, SHA256 or SHA512")
	f.IntVar(&a.Digits, "digits", otp.DefaultDigits, "code length")
	f.IntVar(&a.Period, "period", otp.DefaultPeriod, "TOTP period in seconds")
	f.Int64Var(&a.Counter, "counter", 0, "initial HOTP counter")
	f.BoolVar(&generate, "generate", false, "generate a random secret")
	f.BoolVar(&favorite, "favorite", false, "pin to the top")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show every account with its current code",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cards, err := c.keeper.Cards(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cards)
			}
			if len(cards) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts")
				return nil
			}
			return printCards(cmd, cards)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print cards as JSON")
	return cmd
}

func printCards(cmd *cobra.Command, cards []display.Card) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tISSUER\tACCOUNT\tCODE\tLEFT")
	for _, card := range cards {
		left := "-"
		if card.Type == otp.TypeTOTP {
			left = fmt.Sprintf("%ds", card.RemainingSeconds)
			if card.Urgent {
				left += "!"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			card.AccountID.String()[:8], card.Issuer, card.AccountName, card.FormattedCode, left)
	}
	return w.Flush()
}

func newCodeCmd(c *cli) *cobra.Command {
	var next bool
	cmd := &cobra.Command{
		Use:   "code <account>",
		Short: "Print the current code of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.resolve(ctx, args[0])
			if err != nil {
				return err
			}
			if next {
				if a, err = c.keeper.IncrementCounter(ctx, a.ID); err != nil {
					return err
				}
			}

			code, err := c.keeper.Code(ctx, a.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
	cmd.Flags().BoolVar(&next, "next", false, "advance a HOTP counter first")
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <account>",
		Aliases: []string{"rm"},
		Short:   "Remove an account and its secret",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.resolve(ctx, args[0])
			if err != nil {
				return err
			}
			if err := c.keeper.Accounts().Delete(ctx, a.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", a.DisplayName())
			return nil
		},
	}
}
