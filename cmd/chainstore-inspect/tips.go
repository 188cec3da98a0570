package main

import (
	"github.com/spf13/cobra"
)

func newTipsCmd(storePath, rootIDHex *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tips",
		Short: "List every current branch tip",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(*storePath, *rootIDHex)
			if err != nil {
				return err
			}
			defer store.Close()

			tips, err := store.GetTipsIDs()
			if err != nil {
				return err
			}
			for _, id := range tips {
				printf(cmd, "%s\n", id.String())
			}
			return nil
		},
	}
}
