package main

import (
	"github.com/spf13/cobra"
)

func newFlushCmd(storePath, rootIDHex *string) *cobra.Command {
	return &cobra.Command{
		Use:   "flush <hex-id>",
		Short: "Migrate the chain up to an id into the permanent tier",
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
			if err := store.FlushToPermanentStore(id); err != nil {
				return err
			}
			printf(cmd, "flushed up to %s\n", id.String())
			return nil
		},
	}
}
