package cmd

import (
	"fmt"
	"os"

	"github.com/eisenwinter/mdqd/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ConfigFileLocation is of the config to load
var ConfigFileLocation string

// TopLevelLogger is the logger all loggers come from
var TopLevelLogger *zap.Logger

// LoadedConfig is the currently loaded configuration after initial bootstrapping
var LoadedConfig *config.Configuration

var rootCommand = cobra.Command{
	Use:   "mdqd",
	Short: "mdqd an OpenID Connect metadata query server",
	Long: `mdqd serves OpenID Connect client metadata using the metadata query protocol,
	either as plain JSON or as signed JWT.`,
	Run: func(cmd *cobra.Command, args []string) {
		serveCommand.Run(cmd, args)
	},
}

func Execute() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {

	rootCommand.PersistentFlags().
		StringVar(&ConfigFileLocation, "config", "", "config file to be used")

	metadataCommand.AddCommand(&checkMetadataCommand)

	rootCommand.AddCommand(&serveCommand)
	rootCommand.AddCommand(&metadataCommand)
	rootCommand.AddCommand(&signCommand)
}
