package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/glossopoeia/treevm/config"
)

var log = commonlog.GetLogger("treevm.cmd")

var (
	configPath string
	verbosity  int
)

var rootCmd = &cobra.Command{
	Use:   "treevm",
	Short: "Execution core of a tree-processing virtual machine",
	Long: `treevm drives the runtime core of a tree-processing virtual machine: the
segmented evaluation stack, the node pools and the reference-counted heap.
It runs a built-in demonstration program on the reference interpreter and
reports how the runtime's memory behaved.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		v := cfg.Log.Verbosity
		if cmd.Flags().Changed("verbose") {
			v = verbosity
		}
		var path *string
		if cfg.Log.Path != "" {
			path = &cfg.Log.Path
		}
		commonlog.Configure(v, path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a treevm.toml file (default: search upward from the working directory)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log verbosity, repeat for more detail")
}

// loadConfig reads the file named by --config, or the nearest treevm.toml.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.FindAndLoad(wd)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
