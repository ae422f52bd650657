package admin

import (
	"github.com/spf13/cobra"

	"shardkv/cmd/util"
)

// AdminCommands groups the maintenance commands. Unlike the kv group the
// store is not opened once for the whole group: repair and schema must run
// against a store that cannot (or must not) be opened.
var AdminCommands = &cobra.Command{
	Use:   "admin",
	Short: "Inspect and maintain a store",
}

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupStoreFlags(AdminCommands)

	AdminCommands.AddCommand(infoCmd)
	AdminCommands.AddCommand(schemaCmd)
	AdminCommands.AddCommand(compactCmd)
	AdminCommands.AddCommand(repairCmd)
	AdminCommands.AddCommand(metricsCmd)
}
