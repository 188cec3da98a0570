// Command chainstore-inspect is a small admin/inspection tool over an
// on-disk chainstorage block store: list tips, dump BlockInfo, read/set
// tags, and trigger a flush or prune by hand.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var log = logrus.WithField("component", "chainstore-inspect")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		storePath string
		rootIDHex string
	)

	root := &cobra.Command{
		Use:   "chainstore-inspect",
		Short: "Inspect and administer a chainstorage block store",
	}
	root.PersistentFlags().StringVar(&storePath, "path", "", "path to the store directory (required)")
	root.PersistentFlags().StringVar(&rootIDHex, "root-id", "00000000", "hex-encoded root sentinel id")
	root.MarkPersistentFlagRequired("path")

	root.AddCommand(newTipsCmd(&storePath, &rootIDHex))
	root.AddCommand(newInfoCmd(&storePath, &rootIDHex))
	root.AddCommand(newTagCmd(&storePath, &rootIDHex))
	root.AddCommand(newFlushCmd(&storePath, &rootIDHex))
	root.AddCommand(newPruneCmd(&storePath, &rootIDHex))

	return root
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
