package admin

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shardkv/cmd/util"
	"shardkv/lib/store/shardstore"
)

// withStore opens the store for the duration of a single command.
func withStore(cmd *cobra.Command, fn func(*shardstore.Store) error) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	path, opts, err := util.GetStoreConfig()
	if err != nil {
		return err
	}
	s, err := shardstore.Open(path, opts)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(s)
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print engine statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(s *shardstore.Store) error {
			stats, ok := s.Property("engine.stats")
			if !ok {
				return fmt.Errorf("engine statistics not available")
			}
			fmt.Println(stats)
			return nil
		})
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the persisted sharding definition",
	Long:  util.WrapString("Reads the sharding definition recorded next to the store without opening the store itself, so it also works on a store that no longer opens."),
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := util.BindCommandFlags(cmd); err != nil {
			return err
		}
		path, _, err := util.GetStoreConfig()
		if err != nil {
			return err
		}
		def, err := shardstore.Schema(path)
		if err != nil {
			return err
		}
		fmt.Println(def)
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compact the whole store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(s *shardstore.Store) error {
			fmt.Println("compacting...")
			if err := s.Compact(); err != nil {
				return err
			}
			fmt.Println("done")
			return nil
		})
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Recover a store that fails to open",
	Long:  util.WrapString("Attempts to recover the store and re-authorizes shard recreation, so the next open rebuilds shards the recovery lost. The store must not be in use."),
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := util.BindCommandFlags(cmd); err != nil {
			return err
		}
		path, opts, err := util.GetStoreConfig()
		if err != nil {
			return err
		}
		if err := shardstore.Repair(path, opts); err != nil {
			return err
		}
		fmt.Println("repair finished")
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print store metrics in Prometheus text format",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(s *shardstore.Store) error {
			s.WritePrometheus(os.Stdout)
			return nil
		})
	},
}
