// Package cmd is the storefront command line.
//
// Settings come from, highest priority first: flags, STOREFRONT_* environment
// variables (STOREFRONT_SERVER_PORT, STOREFRONT_CACHE_TTL, ...), the YAML file
// named by --config or STOREFRONT_CONFIG_FILE, and built-in defaults.
package cmd

import (
	"os"

	"github.com/freekieb7/storefront/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// NewRootCommand builds the command tree around a fresh configuration.
func NewRootCommand() *cobra.Command {
	v := config.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "storefront",
		Short: "A small storefront served by a hand-rolled HTTP stack",
		Long: `storefront serves a product catalog with server-rendered pages, a JSON API,
session login, image uploads and product reviews.

  storefront serve     start the HTTP server
  storefront routes    list the registered routes
  storefront config    print the effective configuration`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				configFile = os.Getenv(config.EnvPrefix + "_CONFIG_FILE")
			}
			return config.ReadFile(v, configFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML config file (or "+config.EnvPrefix+"_CONFIG_FILE)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.Bool("dev", false, "development mode: detailed error pages and view reloading")
	bindFlag(v, "log.level", flags.Lookup("log-level"))
	bindFlag(v, "development", flags.Lookup("dev"))

	rootCmd.AddCommand(
		newServeCommand(v),
		newRoutesCommand(v),
		newConfigCommand(v),
	)

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
