package main

import (
	"github.com/spf13/cobra"
)

func newPruneCmd(storePath, rootIDHex *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prune <hex-tip-id>",
		Short: "Prune unreferenced ancestors starting at a tip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(*storePath, *rootIDHex)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := store.PruneBranch(id); err != nil {
				return err
			}
			printf(cmd, "pruned from %s\n", id.String())
			return nil
		},
	}
}
