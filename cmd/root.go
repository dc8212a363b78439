// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	uriFlag        = "uri"
	uriConf        = "store.uri"
	databaseFlag   = "database"
	databaseConf   = "store.database"
	collectionFlag = "collection"
	collectionConf = "store.collection"
)

// NewRootCommand enables all children commands to read flags from CLI flags,
// environment variables prefixed with LENS, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("LENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/lens", "$HOME/.lens", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetDefault(uriFlag, "mongodb://localhost:27017")
	viper.SetDefault(databaseFlag, "")
	viper.SetDefault(collectionFlag, "")
	err := viper.ReadInConfig()
	if err == nil {
		viper.SetDefault(uriFlag, viper.Get(uriConf))
		viper.SetDefault(databaseFlag, viper.Get(databaseConf))
		viper.SetDefault(collectionFlag, viper.Get(collectionConf))
	}

	rootCmd := &cobra.Command{
		Use:   "lens",
		Short: "Lazy, immutable, chainable read-only views over MongoDB record collections",
		Long: `Lazy, immutable, chainable read-only views over MongoDB record collections.

Compose filtering, sorting, pagination and sampling into a declarative pipeline
and materialize it as a count, a tag listing, or a full summary.`,
	}

	flags := rootCmd.PersistentFlags()
	flags.String(uriFlag, viper.GetString(uriFlag), "MongoDB connection URI")
	flags.String(databaseFlag, viper.GetString(databaseFlag), "database holding the record collection")
	flags.String(collectionFlag, viper.GetString(collectionFlag), "record collection to build views over")

	_ = viper.BindPFlag(uriFlag, flags.Lookup(uriFlag))
	_ = viper.BindPFlag(databaseFlag, flags.Lookup(databaseFlag))
	_ = viper.BindPFlag(collectionFlag, flags.Lookup(collectionFlag))

	return rootCmd
}
