// Command reqkit fetches paginated, rate-limited API resources from the
// command line and serves the same capability over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/Sternrassler/reqkit/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "reqkit",
		Short: "Paginated, rate-limit aware API client",
		Long: `reqkit calls REST and GraphQL APIs, walks every page with one of the
offset, cursor, link-header or token strategies and retries requests the
server rejected with 429 Too Many Requests.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (yaml)")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error, disabled)")
	root.PersistentFlags().Bool("log-pretty", false, "human-readable log output")

	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.pretty", root.PersistentFlags().Lookup("log-pretty"))

	root.AddCommand(newFetchCommand())
	root.AddCommand(newServeCommand())

	return root
}

// initConfig reads the config file and REQKIT_* environment variables, then
// configures logging.
func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}

	viper.SetEnvPrefix("REQKIT")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(viper.GetString("log.level")),
		Pretty: viper.GetBool("log.pretty"),
		Output: os.Stderr,
	})
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
