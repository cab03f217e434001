package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/freekieb7/storefront/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRoutesCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the registered routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			app, err := build(cfg, slog.New(slog.DiscardHandler))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATTERN")
			for _, route := range app.server.Router.Routes() {
				fmt.Fprintf(w, "%s\t%s\n", route.Method, route.Pattern)
			}
			return w.Flush()
		},
	}
}
