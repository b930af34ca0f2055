package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:           "snapster",
	Short:         "Snapster mini-app reward automation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}
