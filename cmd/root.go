package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tudl/bugit/pkg/bootstrap"
	"github.com/tudl/bugit/pkg/logs"
)

// envPrefix is prepended to upper-cased flag names to find environment overrides, e.g. BUGIT_CONFIG_FILE
const envPrefix = "BUGIT_"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bugit",
	Short: "Field encryption and partner key exchange for the bugit finance service",
	Long: `bugit protects every sensitive field of the finance service with AES-256-GCM
and, at startup, exchanges RSA keys with the partner service to obtain an API key.

Configuration is read from a YAML file; every flag can also be set with a
BUGIT_ prefixed environment variable, e.g. BUGIT_CONFIG_FILE.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logs.Initialize()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&bootstrap.ConfigFilePath,
		"config-file",
		"c",
		"./bugit.yaml",
		"Config file location, default is `bugit.yaml` in the current working directory.",
	)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	logs.AddFlags(rootCmd.PersistentFlags())

	setCommandFlagsFromEnv(envPrefix, rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setCommandFlagsFromEnv applies environment overrides to the flags of cmd and all of its subcommands.
func setCommandFlagsFromEnv(prefix string, cmd *cobra.Command) {
	setFlagsFromEnv(prefix, cmd.PersistentFlags())
	setFlagsFromEnv(prefix, cmd.Flags())
	for _, child := range cmd.Commands() {
		setCommandFlagsFromEnv(prefix, child)
	}
}

func setFlagsFromEnv(prefix string, fs *pflag.FlagSet) {
	set := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) {
		set[f.Name] = true
	})
	fs.VisitAll(func(f *pflag.Flag) {
		// ignore flags set from the commandline
		if set[f.Name] {
			return
		}
		if e, ok := os.LookupEnv(envName(prefix, f.Name)); ok {
			_ = f.Value.Set(e)
		}
	})
}

// envName maps a flag name to its environment variable, e.g. config-file to BUGIT_CONFIG_FILE.
func envName(prefix, flagName string) string {
	// remove trailing _ to reduce common errors with the prefix, i.e. people setting it to MY_PROG_
	cleanPrefix := strings.TrimSuffix(prefix, "_")
	return fmt.Sprintf("%s_%s", cleanPrefix, strings.ReplaceAll(strings.ToUpper(flagName), "-", "_"))
}
