package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/eisenwinter/mdqd/mdq"
	"github.com/eisenwinter/mdqd/metadata"
	"github.com/spf13/cobra"
)

var metadataCommand = cobra.Command{
	Use:   "metadata",
	Short: "metadata source related commands",
}

var checkMetadataCommand = cobra.Command{
	Use:   "check",
	Short: "loads the configured metadata source once",
	Long:  `Loads the configured metadata source once and lists the client ids found, exits non-zero if the source is unusable`,
	Run: func(cmd *cobra.Command, args []string) {
		source := mustResolveSource()
		defer closeSource(source)
		store := metadata.NewStore()
		refresher := metadata.NewRefresher(
			TopLevelLogger.Named("refresher"),
			source,
			store,
			0,
			LoadedConfig.Metadata.LoadTimeout,
		)
		if err := refresher.Refresh(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "unable to load metadata from %s: %v\n", source, err)
			os.Exit(1)
		}
		ids := make([]string, 0, store.Len())
		for id := range store.All().Metadata {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Printf("%d clients loaded from %s\n", len(ids), source)
		for _, id := range ids {
			fmt.Printf("  %s\t%s\n", id, mdq.EncodeEntityID(id))
		}
	},
}
