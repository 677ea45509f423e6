package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/otpkeeper/pkg/cloudsync"
	"github.com/dmitrymomot/otpkeeper/pkg/settings"
)

func newSyncCmd(c *cli) *cobra.Command {
	var upload, download, enable bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize accounts with the configured provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if upload && download {
				return errors.New("--upload and --download are mutually exclusive")
			}
			ctx := cmd.Context()

			if enable {
				driver := c.cfg.Sync.Driver
				if err := c.keeper.Settings().Update(ctx, func(s *settings.Settings) {
					s.CloudSync.Enabled = true
					s.CloudSync.Provider = driver
				}); err != nil {
					return err
				}
			}

			pw, err := c.password(cmd, false)
			if err != nil {
				return err
			}

			manager := c.keeper.SyncManager()
			unsubscribe := manager.Subscribe(func(ev cloudsync.Event) {
				fmt.Fprintln(cmd.ErrOrStderr(), ev.Message)
			})
			defer unsubscribe()

			var res cloudsync.Result
			switch {
			case upload:
				res, err = c.keeper.ForceUpload(ctx, pw)
			case download:
				res, err = c.keeper.ForceDownload(ctx, pw)
			default:
				res, err = c.keeper.Sync(ctx, pw)
			}
			if err != nil {
				return fmt.Errorf("sync %s: %w", res, err)
			}

			if report, ok := manager.LastReport(); ok && report.Added > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d account(s) added\n", res, report.Added)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&upload, "upload", false, "overwrite the remote backup")
	cmd.Flags().BoolVar(&download, "download", false, "merge the remote backup regardless of timestamps")
	cmd.Flags().BoolVar(&enable, "enable", false, "turn sync on for the configured driver first")
	return cmd
}
