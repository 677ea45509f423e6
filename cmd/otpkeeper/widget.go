package main

import (
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/otpkeeper/pkg/widgetapi"
)

func newWidgetCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "widget",
		Short: "Serve current codes as JSON for desktop widgets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg.Widget
			if addr != "" {
				cfg.Addr = addr
			}
			srv := widgetapi.NewServer(cfg, c.log)
			return srv.Run(cmd.Context(), widgetapi.NewRouter(c.keeper, c.log))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the configured one")
	return cmd
}
