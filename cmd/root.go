package cmd

import (
	"fmt"
	"os"
	"sync"

	"github.com/devopsext/proflog/common"
	"github.com/devopsext/proflog/config"
	"github.com/devopsext/proflog/provider"
	"github.com/spf13/cobra"
)

var VERSION = "unknown"

var logs = common.NewLogs()
var stdout *provider.Stdout
var mainWG sync.WaitGroup

type RootOptions struct {
	Config string
}

var rootOptions = RootOptions{}

func newRootCmd() *cobra.Command {

	rootCmd := &cobra.Command{
		Use:          "proflog",
		Short:        "Process counters exporter",
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootOptions.Config, "config", rootOptions.Config, "Config file, config.yaml in ~/.proflog or the working directory by default")
	config.AddFlags(flags)

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDumpCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(VERSION)
		},
	})
	return rootCmd
}

func Execute() {

	if err := newRootCmd().Execute(); err != nil {
		logs.Error(err)
		os.Exit(1)
	}
}
