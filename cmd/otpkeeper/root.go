package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrymomot/otpkeeper"
	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
)

const passwordEnv = otpkeeper.EnvPrefix + "PASSWORD"

var (
	errPasswordRequired = errors.New("password required: set " + passwordEnv + " or run in a terminal")
	errPasswordMismatch = errors.New("passwords do not match")
	errNoMatch          = errors.New("no account matches")
	errAmbiguous        = errors.New("more than one account matches")
)

type cli struct {
	configFile string
	cfg        otpkeeper.Config
	log        *slog.Logger
	keeper     *otpkeeper.Keeper

	stdin   *os.File
	getenv  func(string) string
	options []otpkeeper.Option
}

func newCLI() *cli {
	return &cli{stdin: os.Stdin, getenv: os.Getenv}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "otpkeeper",
		Short:         "TOTP/HOTP authenticator with encrypted backups and cloud sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "YAML config file")

	root.AddCommand(
		newAddCmd(c),
		newListCmd(c),
		newCodeCmd(c),
		newDeleteCmd(c),
		newExportCmd(c),
		newImportCmd(c),
		newSyncCmd(c),
		newQRCmd(c),
		newWidgetCmd(c),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := otpkeeper.LoadConfig(c.configFile)
	if err != nil {
		return err
	}
	format := logger.Format(strings.ToLower(cfg.LogFormat))
	if format != logger.FormatJSON && format != logger.FormatText {
		return fmt.Errorf("%w: log format %q", otpkeeper.ErrInvalidConfig, cfg.LogFormat)
	}

	c.cfg = cfg
	c.log = logger.New(
		logger.WithLevelName(cfg.LogLevel),
		logger.WithFormat(format),
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithAttr(slog.String("app", "otpkeeper")),
	)

	opts := append([]otpkeeper.Option{otpkeeper.WithLogger(c.log)}, c.options...)
	c.keeper, err = otpkeeper.Open(cmd.Context(), cfg, opts...)
	return err
}

// password reads the backup password from the environment or the terminal.
func (c *cli) password(cmd *cobra.Command, confirm bool) (string, error) {
	if pw := c.getenv(passwordEnv); pw != "" {
		return pw, nil
	}
	fd := int(c.stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errPasswordRequired
	}

	read := func(prompt string) (string, error) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		return string(b), err
	}

	pw, err := read("Password: ")
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", errPasswordRequired
	}
	if confirm {
		again, err := read("Confirm password: ")
		if err != nil {
			return "", err
		}
		if again != pw {
			return "", errPasswordMismatch
		}
	}
	return pw, nil
}

// resolve finds one account by id, id prefix, "Issuer:Name", issuer or name.
func (c *cli) resolve(ctx context.Context, query string) (account.Account, error) {
	repo := c.keeper.Accounts()
	if id, err := uuid.Parse(query); err == nil {
		return repo.Get(ctx, id)
	}

	accounts, err := repo.List(ctx)
	if err != nil {
		return account.Account{}, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var matches []account.Account
	for _, a := range accounts {
		switch {
		case strings.HasPrefix(a.ID.String(), q),
			strings.EqualFold(a.Issuer+":"+a.AccountName, q),
			strings.EqualFold(a.Issuer, q),
			strings.EqualFold(a.AccountName, q):
			matches = append(matches, a)
		}
	}

	switch len(matches) {
	case 0:
		return account.Account{}, fmt.Errorf("%w %q", errNoMatch, query)
	case 1:
		return matches[0], nil
	default:
		return account.Account{}, fmt.Errorf("%w %q, use the id", errAmbiguous, query)
	}
}

func writeFile(path string, data []byte, stdout io.Writer) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readFile(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
