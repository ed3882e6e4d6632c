package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CloudNativeWorks/elchi-decompiler/pkg/template"
)

var (
	unitUser    string
	unitWorkDir string
)

var unitCmd = &cobra.Command{
	Use:   "systemd-unit",
	Short: "Print a systemd unit file for the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		binary, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to resolve executable: %w", err)
		}
		configPath := cfgFile
		if configPath == "" {
			configPath = "/etc/elchi-decompiler/config.yaml"
		}
		if abs, err := filepath.Abs(configPath); err == nil {
			configPath = abs
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), template.SystemdUnit(unitWorkDir, unitUser, binary, configPath))
		return err
	},
}

func init() {
	unitCmd.Flags().StringVar(&unitUser, "user", "elchi", "service user and group")
	unitCmd.Flags().StringVar(&unitWorkDir, "workdir", "/var/lib/elchi-decompiler", "working directory")
	RootCmd.AddCommand(unitCmd)
}
