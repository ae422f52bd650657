package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shardkv/cmd/admin"
	"shardkv/cmd/kv"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "shardkv",
		Short: "sharded key-value storage layer",
		Long: fmt.Sprintf(`shardkv (v%s)

A key-value storage layer over an embedded ordered engine, distributing
the keys of each logical prefix across physical shards.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of shardkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("shardkv v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(admin.AdminCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
