package cmd

import (
	"fmt"
	"os"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	toolsDir string
	Cfg      *config.Config
	Version  string
)

var RootCmd = &cobra.Command{
	Use:   "elchi-decompiler",
	Short: "Elchi Decompiler - Java class and archive decompilation service",
	Long: `Elchi Decompiler turns Java class files and jar archives back into source
using embedded engines or external decompiler tools.`,
	SilenceUsage: true,
}

func Execute(version string) error {
	Version = version
	return RootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	RootCmd.PersistentFlags().StringVar(&toolsDir, "tools-dir", "", "external tools directory (overrides config file)")
}

func initConfig() {
	var err error

	// An empty path searches the default locations; a missing file is fine.
	Cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Printf("Fatal: Configuration could not be loaded: %v\n", err)
		os.Exit(1)
	}

	if toolsDir != "" {
		Cfg.Engines.ToolsDir = toolsDir
	}
}
