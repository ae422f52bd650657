package kv

import (
	"github.com/spf13/cobra"

	"shardkv/cmd/util"
	"shardkv/lib/store/shardstore"
)

var (
	kvStore *shardstore.Store

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  setupStore,
		PersistentPostRunE: teardownStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common store flags to the KV command
	util.SetupStoreFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(listCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupStore opens the store all subcommands operate on
func setupStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	path, opts, err := util.GetStoreConfig()
	if err != nil {
		return err
	}

	kvStore, err = shardstore.Open(path, opts)
	return err
}

// teardownStore closes the store after the subcommand ran
func teardownStore(cmd *cobra.Command, _ []string) error {
	if kvStore != nil {
		return kvStore.Close()
	}
	return nil
}
