package kv

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [prefix] [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, key, value := args[0], args[1], args[2]
			b := kvStore.NewBatch()
			defer b.Close()
			if err := b.Set(prefix, key, []byte(value)); err != nil {
				return err
			}
			if err := b.Commit(true); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [prefix] [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, key := args[0], args[1]
			resp, ok, err := kvStore.Get(prefix, key)
			if err != nil {
				return err
			}
			fmt.Printf("prefix=%s, key=%s, found=%v, resp=%s\n", prefix, key, ok, resp)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [prefix] [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, key := args[0], args[1]
			b := kvStore.NewBatch()
			defer b.Close()
			if err := b.Delete(prefix, key); err != nil {
				return err
			}
			if err := b.Commit(true); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list [prefix]",
		Short: "Lists all key value pairs of a prefix in key order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			it, err := kvStore.NewIterator(args[0])
			if err != nil {
				return err
			}
			defer it.Close()
			n := 0
			for ok := it.First(); ok; ok = it.Next() {
				fmt.Printf("%s=%s\n", it.Key(), it.Value())
				n++
			}
			fmt.Printf("%d entries\n", n)
			return nil
		},
	}
)
