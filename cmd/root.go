package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cfg := viper.New()

	rootCmd := &cobra.Command{
		Use:           "settlectl",
		Short:         "settlectl: replay settlement sessions against an in-memory ledger",
		Long:          "settlectl loads a YAML script of sessions, runs each one under the settlement lock, and reports which sessions settled and which claims they left behind.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig(cfg)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(keyConfig, "", "config file (default ./settlectl.yaml)")
	flags.String(keyLogLevel, "warn", "log level: debug, info, warn, error")
	flags.Int(keyMaxTouchedKeys, 0, "cap on distinct keys a session may touch (0 for unlimited)")
	_ = cfg.BindPFlag(keyConfig, flags.Lookup(keyConfig))
	_ = cfg.BindPFlag(keyLogLevel, flags.Lookup(keyLogLevel))
	_ = cfg.BindPFlag(keyMaxTouchedKeys, flags.Lookup(keyMaxTouchedKeys))
	bindEnv(cfg)

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(cfg),
	)

	return rootCmd
}
