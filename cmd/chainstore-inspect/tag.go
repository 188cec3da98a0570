package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newTagCmd(storePath, rootIDHex *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag <name> [hex-id]",
		Short: "Read a tag, or set it if a second argument is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(*storePath, *rootIDHex)
			if err != nil {
				return err
			}
			defer store.Close()

			name := args[0]
			if len(args) == 1 {
				id, found, err := store.GetTag(name)
				if err != nil {
					return err
				}
				if !found {
					return errors.Errorf("tag %q is not set", name)
				}
				printf(cmd, "%s\n", id.String())
				return nil
			}

			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			if err := store.PutTag(name, id); err != nil {
				return err
			}
			printf(cmd, "tag %q -> %s\n", name, id.String())
			return nil
		},
	}
	return cmd
}
