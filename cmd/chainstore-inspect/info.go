package main

import (
	"github.com/spf13/cobra"
)

func newInfoCmd(storePath, rootIDHex *string) *cobra.Command {
	return &cobra.Command{
		Use:   "info <hex-id>",
		Short: "Dump BlockInfo for an id",
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
			info, err := store.GetBlockInfo(id)
			if err != nil {
				return err
			}
			printf(cmd, "id:               %s\n", info.ID().String())
			printf(cmd, "parent_id:        %s\n", info.ParentID().String())
			printf(cmd, "chain_length:     %d\n", info.ChainLength())
			printf(cmd, "parent_ref_count: %d\n", info.ParentRefCount())
			printf(cmd, "tag_ref_count:    %d\n", info.TagRefCount())
			return nil
		},
	}
}
